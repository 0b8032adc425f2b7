package kafka

import (
	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

var SyncProd sarama.SyncProducer

func InitSyncProducerFromClient() error {
	p, err := sarama.NewSyncProducerFromClient(KafkaClient)
	if err != nil {
		return errors.Wrap(err, "new sync producer")
	}
	SyncProd = p
	return nil
}

// SendSync key 决定分区：扩散任务用 chatId 作 key，单聊天内的任务串行可见
func SendSync(topic, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	_, _, err := SyncProd.SendMessage(msg)
	return errors.Wrapf(err, "send sync topic=%s", topic)
}
