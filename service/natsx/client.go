package natsx

import (
	"time"

	"PSync/global/config"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// NatsxClient NATS/JetStream 连接与流管理。
// 作为扩散任务队列的备选后端（backend=nats 时启用）。
type NatsxClient struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	cfg config.NatsConfig
}

func NewNatsxClient(cfg config.NatsConfig) (*NatsxClient, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jetstream context")
	}
	c := &NatsxClient{nc: nc, js: js, cfg: cfg}
	if err := c.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// ensureStream 流不存在则建（WorkQueue 性质的持久队列）
func (c *NatsxClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return errors.Wrap(err, "stream info")
	}
	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  []string{c.cfg.Subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	return errors.Wrap(err, "add stream")
}

func (c *NatsxClient) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
