package wake

import (
	"context"
	"encoding/json"
	"sync"

	"PSync/logger"
	"PSync/tools/safe"

	"github.com/redis/go-redis/v9"
)

// Bridge 跨进程唤醒：append 侧 PUBLISH {userId, updateId}，
// 任意进程收到后转发进本地 Bus。纯 fire-and-forget，丢了靠轮询兜底，
// 任何正确性都不允许依赖某次 publish 被收到。
type Bridge struct {
	rdb     redis.UniversalClient
	channel string
	bus     *Bus

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewBridge(rdb redis.UniversalClient, channel string, bus *Bus) *Bridge {
	return &Bridge{rdb: rdb, channel: channel, bus: bus}
}

// Publish 尽力而为，失败只记 warn
func (b *Bridge) Publish(ctx context.Context, userID string, updateID int64) {
	if b == nil || b.rdb == nil {
		return
	}
	payload, _ := json.Marshal(Event{UserID: userID, UpdateID: updateID})
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		logger.Warnf("wake publish failed user=%s: %v", userID, err)
	}
}

// Start 订阅频道并把远端事件转回本地总线；重复 Start 幂等
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return nil
	}
	ps := b.rdb.Subscribe(ctx, b.channel)
	// 等订阅确认，失败直接报出来（调用方决定要不要降级为纯轮询）
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	b.pubsub = ps

	safe.Go("wake-bridge", func() {
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warnf("wake payload parse failed: %v", err)
				continue
			}
			ev.Remote = true
			// 本进程没人等这个用户也无妨，Notify 是 O(等待者数)
			b.bus.Notify(ev)
		}
	})
	logger.Infof("wake bridge subscribed channel=%s", b.channel)
	return nil
}

// Stop 注销订阅；Channel() 随之关闭，转发协程自然退出
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	b.pubsub = nil
	return err
}
