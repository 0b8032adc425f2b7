package message

import (
	"context"
	"time"

	"PSync/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Message 消息体只读视图。内容库归消息写路径所有，
// 同步核心只做按 id 批量取回，用于 difference 的载荷水合。
type Message struct {
	ID        string    `bson:"_id" json:"id"`
	ChatID    string    `bson:"chat_id" json:"chatId"`
	SenderID  string    `bson:"sender_id" json:"senderId"`
	Seq       int64     `bson:"seq" json:"seq"`
	Type      string    `bson:"type" json:"type"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (m *Message) GetTableName() string { return "message" }

// Store 外部协作方的窄接口：一次批量查回，绝不写入
type Store interface {
	FindByIDs(ctx context.Context, ids []string) ([]Message, error)
}

type MongoStore struct {
	Coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	m := Message{}
	return &MongoStore{Coll: db.Collection(m.GetTableName())}
}

func (s *MongoStore) FindByIDs(ctx context.Context, ids []string) ([]Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// 兼容 ObjectId 与业务字符串 id 两种主键
	keys := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		keys = append(keys, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			keys = append(keys, oid)
		}
	}
	cur, err := s.Coll.Find(ctx, bson.M{"_id": bson.M{"$in": keys}},
		options.Find().SetSort(bson.M{"seq": 1}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find messages", "count", len(ids))
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode messages")
	}
	return out, nil
}

// MemStore 测试用内存实现
type MemStore struct {
	ByID map[string]Message
}

func NewMemStore() *MemStore { return &MemStore{ByID: make(map[string]Message)} }

func (s *MemStore) Put(m Message) { s.ByID[m.ID] = m }

func (s *MemStore) FindByIDs(_ context.Context, ids []string) ([]Message, error) {
	var out []Message
	for _, id := range ids {
		if m, ok := s.ByID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
