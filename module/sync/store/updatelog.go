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

// UpsertRow insert-if-absent：重试携带同一个已预留 id 时不会产生第二行
func (s *MongoStore) UpsertRow(ctx context.Context, e *model.UpdateLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.LogColl.UpdateOne(
		ctx,
		bson.M{model.LogFieldUserID: e.UserID, model.LogFieldUpdateID: e.UpdateID},
		bson.M{"$setOnInsert": bson.M{
			model.LogFieldUserID:    e.UserID,
			model.LogFieldUpdateID:  e.UpdateID,
			model.LogFieldType:      e.Type,
			model.LogFieldChatID:    e.ChatID,
			model.LogFieldSeq:       e.Seq,
			model.LogFieldMessageID: e.MessageID,
			model.LogFieldPayload:   e.Payload,
			model.LogFieldCreatedAt: e.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return errs.WrapMsg(err, "upsert log row", "user", e.UserID, "updateId", e.UpdateID)
}

// InsertMany 无序批插。重复键等局部失败原样抛给上层做逐行回退。
func (s *MongoStore) InsertMany(ctx context.Context, rows []model.UpdateLogEntry) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]any, 0, len(rows))
	now := time.Now()
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		docs = append(docs, rows[i])
	}
	_, err := s.LogColl.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return errs.WrapMsg(err, "insert log rows", "count", len(rows))
}

// ListAfter update_id > from 的行，升序，最多 limit 条
func (s *MongoStore) ListAfter(ctx context.Context, userID string, fromUpdateID, limit int64) ([]model.UpdateLogEntry, error) {
	cur, err := s.LogColl.Find(
		ctx,
		bson.M{
			model.LogFieldUserID:   userID,
			model.LogFieldUpdateID: bson.M{"$gt": fromUpdateID},
		},
		options.Find().
			SetSort(bson.M{model.LogFieldUpdateID: 1}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "list updates", "user", userID, "from", fromUpdateID)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []model.UpdateLogEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode updates", "user", userID)
	}
	return out, nil
}

// UsersWithMessage 给定用户集合里已经持有 (message_id, type) 日志行的子集
func (s *MongoStore) UsersWithMessage(ctx context.Context, messageID string, typ model.UpdateType, userIDs []string) (map[string]struct{}, error) {
	if messageID == "" || len(userIDs) == 0 {
		return nil, nil
	}
	vals, err := s.LogColl.Distinct(ctx, model.LogFieldUserID, bson.M{
		model.LogFieldMessageID: messageID,
		model.LogFieldType:      typ,
		model.LogFieldUserID:    bson.M{"$in": userIDs},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "users with message", "messageId", messageID)
	}
	out := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if uid, ok := v.(string); ok {
			out[uid] = struct{}{}
		}
	}
	return out, nil
}

// MaxUpdateID 日志里实际存在的最大 id（诊断 counter 与 log 的缺口用）
func (s *MongoStore) MaxUpdateID(ctx context.Context, userID string) (int64, error) {
	opts := options.FindOne().SetSort(bson.M{model.LogFieldUpdateID: -1})
	var e model.UpdateLogEntry
	err := s.LogColl.FindOne(ctx, bson.M{model.LogFieldUserID: userID}, opts).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, errs.WrapMsg(err, "max update id", "user", userID)
	}
	return e.UpdateID, nil
}
