package natsx

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// PublishOnce 带 Nats-Msg-Id 发布，JetStream 按 Id 去重（生产端幂等）
func (c *NatsxClient) PublishOnce(ctx context.Context, data []byte, msgID string) error {
	msg := nats.NewMsg(c.cfg.Subject)
	msg.Data = data
	if msgID != "" {
		msg.Header.Set(nats.MsgIdHdr, msgID)
	}
	_, err := c.js.PublishMsg(msg, nats.Context(ctx))
	return errors.Wrapf(err, "publish subject=%s", c.cfg.Subject)
}
