package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"PSync/global/config"
	"PSync/logger"
	"PSync/module/fanout"
	"PSync/module/message"
	"PSync/module/sync/handler"
	"PSync/module/sync/service"
	"PSync/module/sync/store"
	"PSync/module/sync/wake"
	"PSync/service/kafka"
	"PSync/service/mgo"
	"PSync/service/natsx"
	storageredis "PSync/service/storage/redis"
	"PSync/tools/safe"
	"PSync/tools/security"
)

func main() {
	var confPath string
	flag.StringVar(&confPath, "conf", "", "config file path (yaml)")
	flag.Parse()

	cfg := config.Default()
	if confPath != "" {
		loaded, err := config.Load(confPath)
		if err != nil {
			logger.Errorf("load config %s failed: %v", confPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Normalize()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mgo.InitMongo(ctx, cfg.Mongo); err != nil {
		logger.Errorf("init mongo failed: %v", err)
		os.Exit(1)
	}
	if err := storageredis.InitRedis(cfg.Redis); err != nil {
		logger.Errorf("init redis failed: %v", err)
		os.Exit(1)
	}

	db := mgo.GetDB()
	rdb := storageredis.GetRedis()

	ms := store.NewMongoStore(db)
	if err := ms.EnsureIndexes(ctx); err != nil {
		logger.Errorf("ensure indexes failed: %v", err)
		os.Exit(1)
	}

	bus := wake.NewBus()
	bridge := wake.NewBridge(rdb, cfg.Sync.WakeChannel, bus)
	svc := service.NewService(service.Options{
		Config:  cfg.Sync,
		Counter: ms,
		Log:     ms,
		Ack:     store.NewRedisAckStore(rdb),
		Bus:     bus,
		Bridge:  bridge,
	})
	if err := svc.Start(ctx); err != nil {
		logger.Errorf("start sync service failed: %v", err)
		os.Exit(1)
	}

	worker := fanout.NewWorker(cfg.Fanout, ms, svc)

	var natsCli *natsx.NatsxClient
	switch cfg.Fanout.Backend {
	case "nats":
		cli, err := natsx.NewNatsxClient(cfg.Nats)
		if err != nil {
			logger.Errorf("init nats failed: %v", err)
			os.Exit(1)
		}
		natsCli = cli
		if _, err := cli.Subscribe(ctx, worker.NatsHandler()); err != nil {
			logger.Errorf("subscribe fanout failed: %v", err)
			os.Exit(1)
		}
	default:
		if err := kafka.InitKafkaClient(cfg.Kafka); err != nil {
			logger.Errorf("init kafka failed: %v", err)
			os.Exit(1)
		}
		if err := kafka.InitSyncProducerFromClient(); err != nil {
			logger.Errorf("init kafka producer failed: %v", err)
			os.Exit(1)
		}
		kafka.RegisterHandler(cfg.Kafka.FanoutTopic, worker.KafkaHandler())
		safe.Go("fanout.consumer", func() {
			if err := kafka.StartConsumerGroup(ctx, cfg.Kafka, []string{cfg.Kafka.FanoutTopic}); err != nil {
				logger.Errorf("consumer group stopped: %v", err)
			}
		})
	}

	msgs := message.NewMongoStore(db)
	api := handler.NewAPI(svc, msgs, security.DefaultOptions([]byte(cfg.HTTP.JWTSecret)))

	r := gin.Default()
	api.Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: r,
	}
	safe.Go("http.server", func() {
		logger.Infof("sync server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			stop()
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := svc.Stop(); err != nil {
		logger.Warnf("sync service stop: %v", err)
	}
	if natsCli != nil {
		natsCli.Close()
	} else {
		if err := kafka.CloseKafka(); err != nil {
			logger.Warnf("close kafka: %v", err)
		}
	}
	if err := storageredis.CloseRedis(); err != nil {
		logger.Warnf("close redis: %v", err)
	}
	if err := mgo.CloseMongo(shutdownCtx); err != nil {
		logger.Warnf("close mongo: %v", err)
	}
}
