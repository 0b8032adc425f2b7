package service

import (
	"context"

	"PSync/logger"
)

// AckResult 显式的"尽力而为"返回：
// 存储不可用时 Degraded=true 而不是悄悄吞掉，测试里看得见，
// 外部行为不变（对客户端永远像保存成功）。
type AckResult struct {
	Pts      int64  `json:"pts"`
	Degraded bool   `json:"-"`
	Reason   string `json:"-"`
}

// SaveAckPts 单调 max 写 + TTL 续期，从不向调用方抛错。
// 这条路只喂观测（客户端落后多少），绝不守门任何正确性。
func (s *Service) SaveAckPts(ctx context.Context, userID string, pts int64) AckResult {
	if s.ack == nil {
		return AckResult{Pts: pts, Degraded: true, Reason: "ack store not configured"}
	}
	stored, err := s.ack.SaveAck(ctx, userID, pts, s.cfg.AckTTL())
	if err != nil {
		logger.Warnf("save ack degraded user=%s pts=%d: %v", userID, pts, err)
		return AckResult{Pts: pts, Degraded: true, Reason: err.Error()}
	}
	return AckResult{Pts: stored}
}

// GetAckPts 任何失败一律按 0 处理
func (s *Service) GetAckPts(ctx context.Context, userID string) int64 {
	if s.ack == nil {
		return 0
	}
	pts, err := s.ack.LoadAck(ctx, userID)
	if err != nil {
		logger.Warnf("load ack degraded user=%s: %v", userID, err)
		return 0
	}
	return pts
}
