package store

import (
	"context"

	"PSync/module/sync/model"
	"PSync/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Get 读当前水位，不存在视为 0，无副作用
func (s *MongoStore) Get(ctx context.Context, userID string) (int64, error) {
	var c model.UpdateCounter
	err := s.CounterColl.FindOne(ctx, bson.M{model.CounterFieldUserID: userID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, errs.WrapMsg(err, "get counter", "user", userID)
	}
	return c.UpdateID, nil
}

// Incr 单文档原子 $inc upsert：这是预留步骤，返回值对该用户唯一且递增，
// 即使对应的日志行还没写出来。
func (s *MongoStore) Incr(ctx context.Context, userID string, count int64) (int64, error) {
	if count <= 0 {
		count = 1
	}
	var c model.UpdateCounter
	err := s.CounterColl.FindOneAndUpdate(
		ctx,
		bson.M{model.CounterFieldUserID: userID},
		bson.M{"$inc": bson.M{model.CounterFieldUpdateID: count}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, errs.WrapMsg(err, "incr counter", "user", userID)
	}
	return c.UpdateID, nil
}
