package store

import (
	"context"
	"time"

	"PSync/module/sync/model"
	"PSync/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BulkDeliver 整批 $max 合并 upsert：
// last_delivered_seq = max(现值, seq)，last_read_seq 仅首插时置 0。
// 重投同一批次只会把游标"再确认"一遍，不会重复计数。
func (s *MongoStore) BulkDeliver(ctx context.Context, chatID string, userIDs []string, seq int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]mongo.WriteModel, 0, len(userIDs))
	for _, uid := range userIDs {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{
				model.DeliveryFieldChatID: chatID,
				model.DeliveryFieldUserID: uid,
			}).
			SetUpdate(bson.M{
				"$max":         bson.M{model.DeliveryFieldLastDeliveredSeq: seq},
				"$setOnInsert": bson.M{model.DeliveryFieldLastReadSeq: int64(0)},
				"$set":         bson.M{model.DeliveryFieldUpdatedAt: now},
			}).
			SetUpsert(true))
	}
	_, err := s.DeliveryColl.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return errs.WrapMsg(err, "bulk deliver", "chat", chatID, "count", len(userIDs), "seq", seq)
}

func (s *MongoStore) GetDelivery(ctx context.Context, chatID, userID string) (*model.DeliveryState, error) {
	var d model.DeliveryState
	err := s.DeliveryColl.FindOne(ctx, bson.M{
		model.DeliveryFieldChatID: chatID,
		model.DeliveryFieldUserID: userID,
	}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("delivery state", "chat", chatID, "user", userID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get delivery state")
	}
	return &d, nil
}
