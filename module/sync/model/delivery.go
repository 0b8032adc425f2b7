package model

import "time"

// DeliveryState 每 (chat, user) 的送达/已读游标。
// last_delivered_seq 只前进（$max 语义）；last_read_seq 首插默认 0，
// 由独立的已读回执路径推进，这里不触碰。
type DeliveryState struct {
	ChatID           string    `bson:"chat_id"`
	UserID           string    `bson:"user_id"`
	LastDeliveredSeq int64     `bson:"last_delivered_seq"`
	LastReadSeq      int64     `bson:"last_read_seq"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

const (
	DeliveryFieldChatID           = "chat_id"
	DeliveryFieldUserID           = "user_id"
	DeliveryFieldLastDeliveredSeq = "last_delivered_seq"
	DeliveryFieldLastReadSeq      = "last_read_seq"
	DeliveryFieldUpdatedAt        = "updated_at"
)

func (d *DeliveryState) GetTableName() string { return "delivery_state" }
