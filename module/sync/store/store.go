package store

import (
	"context"
	"time"

	"PSync/module/sync/model"
)

// CounterStore pts 计数器。Incr 必须是原子 "increment-and-get, 缺省为 0"，
// 这是唯一允许的共享可变写入原语（没有 read-modify-write）。
type CounterStore interface {
	Get(ctx context.Context, userID string) (int64, error)
	Incr(ctx context.Context, userID string, count int64) (int64, error)
}

// LogStore 追加式更新日志。UpsertRow 按 (userID, updateID) 幂等插入，
// InsertMany 无序批插，可能部分失败（由上层回退到 UpsertRow）。
// UsersWithMessage 回答"这批用户里谁已经有该 (messageID, type) 的行"，
// 批量追加用它跳过重投任务里已提交的收件人。
type LogStore interface {
	UpsertRow(ctx context.Context, e *model.UpdateLogEntry) error
	InsertMany(ctx context.Context, rows []model.UpdateLogEntry) error
	ListAfter(ctx context.Context, userID string, fromUpdateID, limit int64) ([]model.UpdateLogEntry, error)
	MaxUpdateID(ctx context.Context, userID string) (int64, error)
	UsersWithMessage(ctx context.Context, messageID string, typ model.UpdateType, userIDs []string) (map[string]struct{}, error)
}

// AckStore TTL 保底的 ack 水位缓存，只进不退（max 写）。
// 纯参考信息，丢了无妨，任何正确性不得依赖它。
type AckStore interface {
	SaveAck(ctx context.Context, userID string, pts int64, ttl time.Duration) (int64, error)
	LoadAck(ctx context.Context, userID string) (int64, error)
}

// DeliveryStore 送达游标。BulkDeliver 对整批做 $max 合并 upsert。
type DeliveryStore interface {
	BulkDeliver(ctx context.Context, chatID string, userIDs []string, seq int64) error
	GetDelivery(ctx context.Context, chatID, userID string) (*model.DeliveryState, error)
}
