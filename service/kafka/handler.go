package kafka

import (
	"context"
	"sync"

	"PSync/tools/errs"
)

// MessageHandler 消费回调。ctx 来自消费组会话，关停时一并取消，
// 回调里所有落库调用都应该透传它。返回错误 = 整条消息重投。
type MessageHandler func(ctx context.Context, topic string, key, value []byte) error

// topic → handler 注册表。扩散 topic 在启动时绑定一次，
// 消费期间只读，不支持动态换绑。
var (
	handlerMu sync.RWMutex
	handlers  = make(map[string]MessageHandler)
)

func RegisterHandler(topic string, handler MessageHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	handlers[topic] = handler
}

func GetHandler(topic string) (MessageHandler, error) {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	if h, ok := handlers[topic]; ok {
		return h, nil
	}
	return nil, errs.New("no handler registered for topic %s", topic).Wrap()
}
