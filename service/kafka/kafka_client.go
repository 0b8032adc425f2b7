package kafka

import (
	"time"

	"PSync/global/config"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

var KafkaClient sarama.Client

func BuildBaseConfig(c config.KafkaConfig) *sarama.Config {
	cfg := sarama.NewConfig()

	// Producer：同一 key（userId/chatId）永远落同一分区，保证分区内有序
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	// Consumer
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	// Net
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

func InitKafkaClient(c config.KafkaConfig) error {
	cfg := BuildBaseConfig(c)
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return errors.Wrap(err, "new kafka client")
	}
	KafkaClient = client
	return nil
}

func CloseKafka() error {
	if KafkaClient != nil {
		return KafkaClient.Close()
	}
	return nil
}
