package model

import "time"

// UpdateType 更新日志行类型
type UpdateType string

const (
	UpdateTypeMessage      UpdateType = "message"
	UpdateTypeRead         UpdateType = "read"
	UpdateTypeDelivered    UpdateType = "delivered"
	UpdateTypeMemberChange UpdateType = "member_change"
	UpdateTypeSystem       UpdateType = "system"
)

// UpdateCounter 每用户单调递增的 pts 水位，"最新已知状态"的唯一权威。
// 首次自增时隐式创建（upsert），正常运行从不删除。
type UpdateCounter struct {
	UserID   string `bson:"_id"`       // 用户ID
	UpdateID int64  `bson:"update_id"` // 当前水位，严格不回退
}

const (
	CounterFieldUserID   = "_id"
	CounterFieldUpdateID = "update_id"
)

func (c *UpdateCounter) GetTableName() string { return "update_counter" }

// UpdateLogEntry 追加式更新日志，一次计数器自增对应一行。
// 唯一约束 (user_id, update_id)；只追加不改写。
// 计数器可短暂领先于已落盘的行：读端把 "counter 比 log 新" 当作
// pending 而不是 lost，重试方负责最终补齐，插入按 (user_id, update_id) 幂等。
type UpdateLogEntry struct {
	UserID    string         `bson:"user_id" json:"userId"`
	UpdateID  int64          `bson:"update_id" json:"updateId"`
	Type      UpdateType     `bson:"type" json:"type"`
	ChatID    string         `bson:"chat_id" json:"chatId"`
	Seq       int64          `bson:"seq,omitempty" json:"seq,omitempty"`
	MessageID string         `bson:"message_id,omitempty" json:"messageId,omitempty"`
	Payload   map[string]any `bson:"payload,omitempty" json:"payload,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
}

const (
	LogFieldUserID    = "user_id"
	LogFieldUpdateID  = "update_id"
	LogFieldType      = "type"
	LogFieldChatID    = "chat_id"
	LogFieldSeq       = "seq"
	LogFieldMessageID = "message_id"
	LogFieldPayload   = "payload"
	LogFieldCreatedAt = "created_at"
)

func (e *UpdateLogEntry) GetTableName() string { return "update_log" }

// AppendParams 单条追加入参（不含 userId 的部分即批量入参）
type AppendParams struct {
	UserID    string
	Type      UpdateType
	ChatID    string
	Seq       int64
	MessageID string
	Payload   map[string]any
}
