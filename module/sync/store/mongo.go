package store

import (
	"context"

	"PSync/module/sync/model"
	"PSync/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore 三张集合的文档库实现：
// update_counter（单文档原子自增）、update_log（追加 + 唯一复合索引）、
// delivery_state（$max 合并 upsert）。
type MongoStore struct {
	CounterColl  *mongo.Collection
	LogColl      *mongo.Collection
	DeliveryColl *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	counter := model.UpdateCounter{}
	logEntry := model.UpdateLogEntry{}
	delivery := model.DeliveryState{}
	return &MongoStore{
		CounterColl:  db.Collection(counter.GetTableName()),
		LogColl:      db.Collection(logEntry.GetTableName()),
		DeliveryColl: db.Collection(delivery.GetTableName()),
	}
}

// EnsureIndexes 唯一索引 (user_id, update_id) / (chat_id, user_id)
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.LogColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: model.LogFieldUserID, Value: 1},
			{Key: model.LogFieldUpdateID, Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_user_update"),
	})
	if err != nil {
		return errs.WrapMsg(err, "ensure update_log index")
	}
	// 重投任务按 (message_id, user_id) 查已提交收件人
	_, err = s.LogColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: model.LogFieldMessageID, Value: 1},
			{Key: model.LogFieldUserID, Value: 1},
		},
		Options: options.Index().SetSparse(true).SetName("idx_message_user"),
	})
	if err != nil {
		return errs.WrapMsg(err, "ensure update_log message index")
	}
	_, err = s.DeliveryColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: model.DeliveryFieldChatID, Value: 1},
			{Key: model.DeliveryFieldUserID, Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_chat_user"),
	})
	return errs.WrapMsg(err, "ensure delivery_state index")
}
