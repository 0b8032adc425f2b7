package service

import (
	"context"
	"sync"

	"PSync/global/config"
	"PSync/logger"
	"PSync/module/sync/model"
	"PSync/module/sync/store"
	"PSync/module/sync/wake"
	"PSync/tools/errs"
)

// Service 每用户更新日志与水位的唯一属主。
// 显式构造 + 注入依赖，生命周期 NewService → Start（桥接订阅）→ Stop。
type Service struct {
	cfg     config.SyncConfig
	counter store.CounterStore
	log     store.LogStore
	ack     store.AckStore
	bus     *wake.Bus
	bridge  *wake.Bridge // 可空：单进程部署没有跨进程桥
}

type Options struct {
	Config  config.SyncConfig
	Counter store.CounterStore
	Log     store.LogStore
	Ack     store.AckStore
	Bus     *wake.Bus
	Bridge  *wake.Bridge
}

func NewService(opts Options) *Service {
	if opts.Bus == nil {
		opts.Bus = wake.NewBus()
	}
	return &Service{
		cfg:     opts.Config,
		counter: opts.Counter,
		log:     opts.Log,
		ack:     opts.Ack,
		bus:     opts.Bus,
		bridge:  opts.Bridge,
	}
}

func (s *Service) Start(ctx context.Context) error {
	if s.bridge != nil {
		return s.bridge.Start(ctx)
	}
	return nil
}

func (s *Service) Stop() error {
	if s.bridge != nil {
		return s.bridge.Stop()
	}
	return nil
}

func (s *Service) Bus() *wake.Bus { return s.bus }

// GetUpdateID 当前水位，缺省 0，无副作用
func (s *Service) GetUpdateID(ctx context.Context, userID string) (int64, error) {
	return s.counter.Get(ctx, userID)
}

// IncrementUpdateID 预留步骤：原子加 count 返回新水位。
// 返回的 id 对该用户唯一且递增，哪怕日志行还没写。
func (s *Service) IncrementUpdateID(ctx context.Context, userID string, count int64) (int64, error) {
	return s.counter.Incr(ctx, userID, count)
}

// AppendUpdate 预留一个 id，写一行日志，然后本地 + 跨进程唤醒。
// 行写失败原样报错，预留不回滚：重试带同一 id 时 UpsertRow 幂等，
// 放弃重试则日志留下一个无害的洞，水位本身仍然正确。
func (s *Service) AppendUpdate(ctx context.Context, p model.AppendParams) (int64, error) {
	if p.UserID == "" || p.ChatID == "" {
		return 0, errs.ErrArgs.WrapMsg("append update", "user", p.UserID, "chat", p.ChatID)
	}
	updateID, err := s.counter.Incr(ctx, p.UserID, 1)
	if err != nil {
		return 0, err
	}
	row := model.UpdateLogEntry{
		UserID:    p.UserID,
		UpdateID:  updateID,
		Type:      p.Type,
		ChatID:    p.ChatID,
		Seq:       p.Seq,
		MessageID: p.MessageID,
		Payload:   p.Payload,
	}
	if err := s.log.UpsertRow(ctx, &row); err != nil {
		return 0, errs.ErrAppendLog.WrapMsg(err.Error(), "user", p.UserID, "updateId", updateID)
	}
	s.wakeOne(ctx, p.UserID, updateID)
	return updateID, nil
}

// AppendUpdates 扩散专用批量追加。收件人去重后按固定分片处理，
// 每片：并行预留 → 组行 → 无序批插 → 失败回退逐行幂等 upsert，
// 落盘后再给整片成员发唤醒。
func (s *Service) AppendUpdates(ctx context.Context, userIDs []string, p model.AppendParams) error {
	users := dedupe(userIDs)
	if len(users) == 0 {
		return nil
	}
	chunkSize := s.cfg.AppendChunkSize
	if chunkSize <= 0 {
		chunkSize = 200
	}
	for start := 0; start < len(users); start += chunkSize {
		end := start + chunkSize
		if end > len(users) {
			end = len(users)
		}
		if err := s.appendChunk(ctx, users[start:end], p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) appendChunk(ctx context.Context, users []string, p model.AppendParams) error {
	// 任务重投：消息关联的追加先剔除已持有该 (messageId, type) 行的
	// 成员，失败片之前已提交的片在重投时整体跳过，不会二次预留 id、
	// 不会多出第二行日志。
	if p.MessageID != "" {
		done, err := s.log.UsersWithMessage(ctx, p.MessageID, p.Type, users)
		if err != nil {
			return errs.WrapMsg(err, "filter committed recipients", "messageId", p.MessageID)
		}
		if len(done) > 0 {
			remaining := make([]string, 0, len(users))
			for _, uid := range users {
				if _, ok := done[uid]; !ok {
					remaining = append(remaining, uid)
				}
			}
			users = remaining
		}
	}
	if len(users) == 0 {
		return nil
	}

	rows := make([]model.UpdateLogEntry, len(users))

	// 并行预留：每个成员一次原子自增
	var wg sync.WaitGroup
	errOnce := make(chan error, len(users))
	for i, uid := range users {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			updateID, err := s.counter.Incr(ctx, uid, 1)
			if err != nil {
				errOnce <- errs.WrapMsg(err, "reserve id", "user", uid)
				return
			}
			rows[i] = model.UpdateLogEntry{
				UserID:    uid,
				UpdateID:  updateID,
				Type:      p.Type,
				ChatID:    p.ChatID,
				Seq:       p.Seq,
				MessageID: p.MessageID,
				Payload:   p.Payload,
			}
		}(i, uid)
	}
	wg.Wait()
	close(errOnce)
	if err := <-errOnce; err != nil {
		return err
	}

	if err := s.log.InsertMany(ctx, rows); err != nil {
		// 瞬时重复键竞态等局部失败 → 逐行 insert-if-absent 兜底，
		// 不重复已插入的行，也不丢任何已预留的 id
		logger.Warnf("bulk insert fell back to row upserts chat=%s rows=%d: %v", p.ChatID, len(rows), err)
		for i := range rows {
			if err := s.log.UpsertRow(ctx, &rows[i]); err != nil {
				return errs.ErrBulkFallback.WrapMsg(err.Error(),
					"user", rows[i].UserID, "updateId", rows[i].UpdateID)
			}
		}
	}

	// 整片落盘后统一唤醒
	for i := range rows {
		s.wakeOne(ctx, rows[i].UserID, rows[i].UpdateID)
	}
	return nil
}

// GetUpdates updateId > from 的行，升序，受服务端上限约束
func (s *Service) GetUpdates(ctx context.Context, userID string, fromUpdateID, limit int64) ([]model.UpdateLogEntry, int64, error) {
	limit = s.effectiveLimit(limit)
	updates, err := s.log.ListAfter(ctx, userID, fromUpdateID, limit)
	if err != nil {
		return nil, 0, err
	}
	lastUpdateID := fromUpdateID
	if n := len(updates); n > 0 {
		lastUpdateID = updates[n-1].UpdateID
	}
	return updates, lastUpdateID, nil
}

// Diagnose counter 与 log 实际最大 id 的缺口（0 = 无积压）。
// 仅观测：缺口要么是在途写入，要么是放弃重试留下的永久洞。
func (s *Service) Diagnose(ctx context.Context, userID string) (pending int64, err error) {
	pts, err := s.counter.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	maxLogged, err := s.log.MaxUpdateID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if pts > maxLogged {
		return pts - maxLogged, nil
	}
	return 0, nil
}

func (s *Service) effectiveLimit(limit int64) int64 {
	if limit <= 0 {
		limit = int64(s.cfg.GetUpdatesLimit)
	}
	if max := int64(s.cfg.GetUpdatesMax); max > 0 && limit > max {
		limit = max
	}
	return limit
}

func (s *Service) wakeOne(ctx context.Context, userID string, updateID int64) {
	s.bus.Notify(wake.Event{UserID: userID, UpdateID: updateID})
	if s.bridge != nil {
		s.bridge.Publish(ctx, userID, updateID)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
