package service

import (
	"context"
	"time"
)

// WakeSource 长轮询被哪路触发器叫醒
type WakeSource string

const (
	WakeEvent   WakeSource = "event"   // 唤醒总线
	WakePoll    WakeSource = "poll"    // 兜底轮询
	WakeInitial WakeSource = "initial" // 注册后的一次性立即检查
	WakeTimeout WakeSource = "timeout"
)

// EventSource 事件来源（纯观测字段，不改变任何行为）
type EventSource string

const (
	EventLocal  EventSource = "local"
	EventRemote EventSource = "remote"
)

type WaitResult struct {
	UpdateID    int64       `json:"updateId"` // timeout 时为 0
	WakeSource  WakeSource  `json:"wakeSource"`
	EventSource EventSource `json:"eventSource,omitempty"`
}

// WaitForUpdate 挂起直到 currentPts > fromUpdateID 或超时。
// 三路触发器并发注册：总线监听、兜底轮询、立即检查；谁先看到新水位
// 谁赢，落选方随 defer 一并拆除，单次调用不留任何定时器或监听器。
// 先注册监听再做立即检查，封掉"更新落在注册之前"的竞态窗口。
func (s *Service) WaitForUpdate(ctx context.Context, userID string, fromUpdateID int64, timeout time.Duration) (WaitResult, error) {
	timeout = s.normalizeTimeout(timeout)

	ch, cancel := s.bus.Subscribe(userID)
	defer cancel()

	pollEvery := s.cfg.PollEvery()
	if pollEvery >= timeout {
		pollEvery = timeout / 2
		if pollEvery < 10*time.Millisecond {
			pollEvery = 10 * time.Millisecond
		}
	}
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if pts, err := s.counter.Get(ctx, userID); err == nil && pts > fromUpdateID {
		return WaitResult{UpdateID: pts, WakeSource: WakeInitial}, nil
	}

	for {
		select {
		case <-ctx.Done():
			// 调用方掉线：等同放弃，清理仍由 defer 完成
			return WaitResult{}, ctx.Err()

		case ev := <-ch:
			if ev.UpdateID > fromUpdateID {
				src := EventLocal
				if ev.Remote {
					src = EventRemote
				}
				return WaitResult{UpdateID: ev.UpdateID, WakeSource: WakeEvent, EventSource: src}, nil
			}
			// 陈旧唤醒，继续等

		case <-ticker.C:
			// 跨进程唤醒丢了也能活：直接重读计数器
			if pts, err := s.counter.Get(ctx, userID); err == nil && pts > fromUpdateID {
				return WaitResult{UpdateID: pts, WakeSource: WakePoll}, nil
			}

		case <-timer.C:
			return WaitResult{WakeSource: WakeTimeout}, nil
		}
	}
}

// normalizeTimeout 荒谬的超时值夹进 [MIN, MAX] 而不是报错
func (s *Service) normalizeTimeout(d time.Duration) time.Duration {
	min, max := s.cfg.WaitMin(), s.cfg.WaitMax()
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
