package wake

import "sync"

// Event 一次唤醒：某用户出现了新的 pts
type Event struct {
	UserID   string `json:"userId"`
	UpdateID int64  `json:"updateId"`
	Remote   bool   `json:"-"` // true = 跨进程转发来的（只影响观测，不影响行为）
}

// Bus 进程内唤醒总线：userId -> 等待者注册表。
// 不做继承式 event-emitter，就是一张互斥锁保护的表。
type Bus struct {
	mu      sync.Mutex
	nextID  int
	waiters map[string]map[int]chan Event
}

func NewBus() *Bus {
	return &Bus{waiters: make(map[string]map[int]chan Event)}
}

// Subscribe 注册一个等待者，返回事件通道和一次性注销函数。
// 通道带 1 格缓冲，Notify 永不阻塞在慢等待者上。
func (b *Bus) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 1)
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	m, ok := b.waiters[userID]
	if !ok {
		m = make(map[int]chan Event)
		b.waiters[userID] = m
	}
	m[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if m, ok := b.waiters[userID]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(b.waiters, userID)
				}
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Notify 给该用户的所有等待者递一个事件；缓冲已满就丢
// （丢了也没事，兜底轮询会把人叫醒）。
func (b *Bus) Notify(ev Event) {
	b.mu.Lock()
	m := b.waiters[ev.UserID]
	chs := make([]chan Event, 0, len(m))
	for _, ch := range m {
		chs = append(chs, ch)
	}
	b.mu.Unlock()

	for _, ch := range chs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// HasWaiter 该用户在本进程是否有人挂着长轮询
func (b *Bus) HasWaiter(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters[userID]) > 0
}

// WaiterCount 测试辅助
func (b *Bus) WaiterCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters[userID])
}
