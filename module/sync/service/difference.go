package service

import (
	"context"
	"sort"
	"time"

	"PSync/module/message"
	"PSync/module/sync/model"
)

// 协议标记：客户端用它识别不兼容的服务端
const (
	ProtoVersion   = "sync/1"
	WatermarkField = "pts"
)

type State struct {
	Pts  int64 `json:"pts"`
	Date int64 `json:"date"` // unix 秒
}

type DifferenceResult struct {
	Updates  []model.UpdateLogEntry `json:"updates"`
	Messages []message.Message      `json:"messages"`
	State    State                  `json:"state"`
	IsLatest bool                   `json:"isLatest"`
	// Watermark 归一化后的客户端水位：max(fromPts, 实际返回的最大 id)，
	// 且不超过 serverPts。客户端拿它当下一轮 fromPts。
	Watermark int64 `json:"watermark"`
}

// State 当前同步状态
func (s *Service) State(ctx context.Context, userID string) (State, error) {
	pts, err := s.counter.Get(ctx, userID)
	if err != nil {
		return State{}, err
	}
	return State{Pts: pts, Date: time.Now().Unix()}, nil
}

// Difference 差量恢复。同一 fromPts 重复调用结果幂等、可安全重试；
// 单次载荷有界，客户端循环拉到 isLatest=true 为止。
func (s *Service) Difference(ctx context.Context, msgs message.Store, userID string, fromPts, limit int64) (*DifferenceResult, error) {
	serverPts, err := s.counter.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()

	// 已是最新：不碰日志库直接短路
	if fromPts >= serverPts {
		return &DifferenceResult{
			Updates:   []model.UpdateLogEntry{},
			Messages:  []message.Message{},
			State:     State{Pts: serverPts, Date: now},
			IsLatest:  true,
			Watermark: serverPts,
		}, nil
	}

	limit = s.effectiveLimit(limit)
	raw, err := s.log.ListAfter(ctx, userID, fromPts, limit)
	if err != nil {
		return nil, err
	}
	updates := sanitizeUpdates(raw, fromPts, limit)

	watermark := fromPts
	if n := len(updates); n > 0 && updates[n-1].UpdateID > watermark {
		watermark = updates[n-1].UpdateID
	}
	if watermark > serverPts {
		watermark = serverPts
	}

	var hydrated []message.Message
	if msgs != nil {
		ids := distinctMessageIDs(updates)
		if len(ids) > 0 {
			if hydrated, err = msgs.FindByIDs(ctx, ids); err != nil {
				return nil, err
			}
		}
	}
	if hydrated == nil {
		hydrated = []message.Message{}
	}

	return &DifferenceResult{
		Updates:   updates,
		Messages:  hydrated,
		State:     State{Pts: serverPts, Date: now},
		IsLatest:  watermark >= serverPts,
		Watermark: watermark,
	}, nil
}

// sanitizeUpdates 防御上游竞态：丢掉 <= fromPts 的行，按 id 去重，
// 升序，截断到 limit
func sanitizeUpdates(raw []model.UpdateLogEntry, fromPts, limit int64) []model.UpdateLogEntry {
	seen := make(map[int64]struct{}, len(raw))
	out := make([]model.UpdateLogEntry, 0, len(raw))
	for _, e := range raw {
		if e.UpdateID <= fromPts {
			continue
		}
		if _, dup := seen[e.UpdateID]; dup {
			continue
		}
		seen[e.UpdateID] = struct{}{}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdateID < out[j].UpdateID })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func distinctMessageIDs(updates []model.UpdateLogEntry) []string {
	seen := make(map[string]struct{}, len(updates))
	out := make([]string, 0, len(updates))
	for _, e := range updates {
		if e.MessageID == "" {
			continue
		}
		if _, ok := seen[e.MessageID]; ok {
			continue
		}
		seen[e.MessageID] = struct{}{}
		out = append(out, e.MessageID)
	}
	return out
}
