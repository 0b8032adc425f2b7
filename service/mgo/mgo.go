package mgo

import (
	"context"
	"sync"
	"time"

	"PSync/global/config"
	"PSync/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	mongoOnce sync.Once
	mongoMgr  *MongoManager
)

type MongoManager struct {
	client *mongo.Client
	db     *mongo.Database
}

// InitMongo 初始化 Mongo 管理器（单例），启动时 ping 一次验连
func InitMongo(ctx context.Context, c config.MongoConfig) error {
	var initErr error
	mongoOnce.Do(func() {
		if c.Uri == "" {
			initErr = errs.New("mongo uri is required").Wrap()
			return
		}
		opts := options.Client().ApplyURI(c.Uri)
		if c.MaxPoolSize > 0 {
			opts.SetMaxPoolSize(uint64(c.MaxPoolSize))
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		cli, err := mongo.Connect(pingCtx, opts)
		if err != nil {
			initErr = errs.WrapMsg(err, "mongo connect", "uri", c.Uri)
			return
		}
		if err := cli.Ping(pingCtx, readpref.Primary()); err != nil {
			initErr = errs.WrapMsg(err, "mongo ping")
			return
		}
		mongoMgr = &MongoManager{client: cli, db: cli.Database(c.Database)}
	})
	return initErr
}

func GetDB() *mongo.Database {
	if mongoMgr == nil {
		panic("Mongo not initialized, call InitMongo first")
	}
	return mongoMgr.db
}

func CloseMongo(ctx context.Context) error {
	if mongoMgr != nil && mongoMgr.client != nil {
		return mongoMgr.client.Disconnect(ctx)
	}
	return nil
}
