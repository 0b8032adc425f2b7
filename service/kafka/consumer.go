package kafka

import (
	"context"
	"time"

	"PSync/global/config"
	"PSync/logger"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

type ConsumerGroupHandler struct{}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	logger.Info("kafka consumer group setup")
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	logger.Info("kafka consumer group cleanup")
	return nil
}

// ConsumeClaim 处理失败不 Mark：offset 不前移，会话重建后整条消息重投，
// 由处理端的幂等写保证重投安全（at-least-once）。
func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		handler, err := GetHandler(msg.Topic)
		if err != nil {
			logger.Warnf("no handler for topic %s: %v", msg.Topic, err)
			session.MarkMessage(msg, "")
			continue
		}
		if err := handler(session.Context(), msg.Topic, msg.Key, msg.Value); err != nil {
			logger.Errorf("handler error topic=%s partition=%d offset=%d: %v",
				msg.Topic, msg.Partition, msg.Offset, err)
			return errors.Wrap(err, "handle message")
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// StartConsumerGroup 阻塞消费直到 ctx 取消；Consume 出错退避后重拉
func StartConsumerGroup(ctx context.Context, c config.KafkaConfig, topics []string) error {
	cfg := BuildBaseConfig(c)
	group, err := sarama.NewConsumerGroup(c.Brokers, c.GroupID, cfg)
	if err != nil {
		return errors.Wrap(err, "new consumer group")
	}
	defer func() { _ = group.Close() }()

	go func() {
		for err := range group.Errors() {
			logger.Errorf("consumer group error: %v", err)
		}
	}()

	handler := &ConsumerGroupHandler{}
	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			logger.Errorf("consume error: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
