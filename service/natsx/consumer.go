package natsx

import (
	"context"
	"time"

	"PSync/logger"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type Handler func(ctx context.Context, data []byte) error

// Subscribe JetStream 持久订阅；handler 报错则 Nak，交给服务端延迟重投
func (c *NatsxClient) Subscribe(ctx context.Context, h Handler) (*nats.Subscription, error) {
	opts := []nats.SubOpt{
		nats.ManualAck(),
		nats.AckWait(30 * time.Second),
		nats.MaxAckPending(256),
		nats.Durable(c.cfg.Durable),
	}
	sub, err := c.js.QueueSubscribe(c.cfg.Subject, c.cfg.Durable, func(m *nats.Msg) {
		data := append([]byte(nil), m.Data...)
		if err := h(ctx, data); err != nil {
			logger.Errorf("nats handler error subject=%s: %v", m.Subject, err)
			_ = m.NakWithDelay(2 * time.Second)
			return
		}
		_ = m.Ack()
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "jetstream subscribe")
	}
	return sub, nil
}
