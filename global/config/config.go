package config

import (
	"os"
	"time"

	"PSync/tools/decode"
	"PSync/tools/errs"
	"PSync/tools/safe"

	"gopkg.in/yaml.v3"
)

type MongoConfig struct {
	Uri         string `json:"uri"`
	Database    string `json:"database"`
	MaxPoolSize int    `json:"maxPoolSize"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"poolSize"`
}

type KafkaConfig struct {
	Brokers         []string `json:"brokers"`
	FanoutTopic     string   `json:"fanoutTopic"`
	GroupID         string   `json:"groupId"`
	ProducerRetries int      `json:"producerRetries"`
}

type NatsConfig struct {
	URL     string `json:"url"`
	Stream  string `json:"stream"`
	Subject string `json:"subject"`
	Durable string `json:"durable"`
}

// SyncConfig 同步服务调参。ChunkSize 与 Fanout.ChunkSize 相互独立，
// 分别是 append 写放大与扩散批量的背压旋钮。
type SyncConfig struct {
	AppendChunkSize  int    `json:"appendChunkSize"`  // appendUpdates 单批行数
	GetUpdatesLimit  int    `json:"getUpdatesLimit"`  // 默认返回条数
	GetUpdatesMax    int    `json:"getUpdatesMax"`    // 服务端硬上限
	WaitMinTimeoutMs int    `json:"waitMinTimeoutMs"` // 长轮询下限
	WaitMaxTimeoutMs int    `json:"waitMaxTimeoutMs"` // 长轮询上限
	PollIntervalMs   int    `json:"pollIntervalMs"`   // 兜底轮询间隔
	AckTTLHours      int    `json:"ackTtlHours"`      // ack 水位 TTL
	WakeChannel      string `json:"wakeChannel"`      // 跨进程唤醒频道
}

type FanoutConfig struct {
	ChunkSize   int    `json:"chunkSize"`   // 每批收件人数
	Concurrency int    `json:"concurrency"` // 任务级并发上限
	Backend     string `json:"backend"`     // kafka | nats
}

type HTTPConfig struct {
	Port      int    `json:"port"`
	JWTSecret string `json:"jwtSecret"`
}

type AppConfig struct {
	Mongo  MongoConfig  `json:"mongo"`
	Redis  RedisConfig  `json:"redis"`
	Kafka  KafkaConfig  `json:"kafka"`
	Nats   NatsConfig   `json:"nats"`
	Sync   SyncConfig   `json:"sync"`
	Fanout FanoutConfig `json:"fanout"`
	HTTP   HTTPConfig   `json:"http"`
}

func Default() *AppConfig {
	c := &AppConfig{
		Mongo: MongoConfig{Uri: "mongodb://localhost:27017", Database: "psync", MaxPoolSize: 100},
		Redis: RedisConfig{Addr: "localhost:6379", PoolSize: 32},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			FanoutTopic:     "psync.fanout",
			GroupID:         "psync-fanout",
			ProducerRetries: 3,
		},
		Nats: NatsConfig{
			URL:     "nats://localhost:4222",
			Stream:  "PSYNC",
			Subject: "psync.fanout",
			Durable: "psync-fanout",
		},
		Sync: SyncConfig{
			AppendChunkSize:  200,
			GetUpdatesLimit:  100,
			GetUpdatesMax:    500,
			WaitMinTimeoutMs: 200,
			WaitMaxTimeoutMs: 60_000,
			PollIntervalMs:   2_000,
			AckTTLHours:      7 * 24,
			WakeChannel:      "psync:wake",
		},
		Fanout: FanoutConfig{ChunkSize: 1000, Concurrency: 8, Backend: "kafka"},
		HTTP:   HTTPConfig{Port: 8080, JWTSecret: "dev-secret"},
	}
	return c
}

// Load 从 YAML 读取，未给的字段落默认值，最后统一夹取边界
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
		var m map[string]any
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, errs.WrapMsg(err, "parse config yaml", "path", path)
		}
		if err := decode.Decode(m, cfg); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("PSYNC_MONGO_URI"); v != "" {
		cfg.Mongo.Uri = v
	}
	if v := os.Getenv("PSYNC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize 群规模无界但分片大小有界：所有旋钮都夹进安全区间
func (c *AppConfig) Normalize() {
	c.Sync.AppendChunkSize = safe.ClampInt(c.Sync.AppendChunkSize, 10, 2000)
	c.Sync.GetUpdatesMax = safe.ClampInt(c.Sync.GetUpdatesMax, 1, 1000)
	c.Sync.GetUpdatesLimit = safe.ClampInt(c.Sync.GetUpdatesLimit, 1, c.Sync.GetUpdatesMax)
	c.Sync.WaitMinTimeoutMs = safe.ClampInt(c.Sync.WaitMinTimeoutMs, 50, 10_000)
	c.Sync.WaitMaxTimeoutMs = safe.ClampInt(c.Sync.WaitMaxTimeoutMs, c.Sync.WaitMinTimeoutMs, 90_000)
	c.Sync.PollIntervalMs = safe.ClampInt(c.Sync.PollIntervalMs, 100, 30_000)
	if c.Sync.AckTTLHours <= 0 {
		c.Sync.AckTTLHours = 7 * 24
	}
	if c.Sync.WakeChannel == "" {
		c.Sync.WakeChannel = "psync:wake"
	}
	c.Fanout.ChunkSize = safe.ClampInt(c.Fanout.ChunkSize, 50, 5000)
	c.Fanout.Concurrency = safe.ClampInt(c.Fanout.Concurrency, 1, 64)
	if c.Fanout.Backend != "nats" {
		c.Fanout.Backend = "kafka"
	}
}

func (c *SyncConfig) WaitMin() time.Duration { return time.Duration(c.WaitMinTimeoutMs) * time.Millisecond }
func (c *SyncConfig) WaitMax() time.Duration { return time.Duration(c.WaitMaxTimeoutMs) * time.Millisecond }
func (c *SyncConfig) PollEvery() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
func (c *SyncConfig) AckTTL() time.Duration { return time.Duration(c.AckTTLHours) * time.Hour }
