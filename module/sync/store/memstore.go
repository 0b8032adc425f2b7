package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"PSync/module/sync/model"
	"PSync/tools/errs"
)

var ErrDupKey = errors.New("duplicate key violated")

// MemStore 内存实现（单进程），生产用 MongoStore。
// Hook 字段可注入故障，模拟批插局部失败 / 分片失败等场景。
type MemStore struct {
	mu       sync.Mutex
	counters map[string]int64
	logs     map[string]map[int64]model.UpdateLogEntry
	delivery map[string]*model.DeliveryState

	InsertManyHook  func(rows []model.UpdateLogEntry) error
	BulkDeliverHook func(chatID string, userIDs []string, seq int64) error
	AckHook         func(userID string) error // 注入 ack 存储不可用

	acks map[string]int64

	MaxInsertBatch  int // 观测到的最大批插行数
	MaxDeliverBatch int // 观测到的最大送达批行数
	InsertManyCalls int
	UpsertCalls     int
	ListAfterCalls  int
}

func NewMemStore() *MemStore {
	return &MemStore{
		counters: make(map[string]int64),
		logs:     make(map[string]map[int64]model.UpdateLogEntry),
		delivery: make(map[string]*model.DeliveryState),
		acks:     make(map[string]int64),
	}
}

func deliveryKey(chat, user string) string { return chat + "|" + user }

func (m *MemStore) Get(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[userID], nil
}

func (m *MemStore) Incr(_ context.Context, userID string, count int64) (int64, error) {
	if count <= 0 {
		count = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[userID] += count
	return m.counters[userID], nil
}

func (m *MemStore) UpsertRow(_ context.Context, e *model.UpdateLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	rows, ok := m.logs[e.UserID]
	if !ok {
		rows = make(map[int64]model.UpdateLogEntry)
		m.logs[e.UserID] = rows
	}
	if _, exists := rows[e.UpdateID]; exists {
		return nil // insert-if-absent：已有行视为成功
	}
	row := *e
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	rows[e.UpdateID] = row
	return nil
}

// InsertMany 模仿无序批插：非重复行照常落库，有重复则整体报 ErrDupKey
func (m *MemStore) InsertMany(_ context.Context, batch []model.UpdateLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertManyCalls++
	if len(batch) > m.MaxInsertBatch {
		m.MaxInsertBatch = len(batch)
	}
	if m.InsertManyHook != nil {
		if err := m.InsertManyHook(batch); err != nil {
			return err
		}
	}
	var dup bool
	for _, e := range batch {
		rows, ok := m.logs[e.UserID]
		if !ok {
			rows = make(map[int64]model.UpdateLogEntry)
			m.logs[e.UserID] = rows
		}
		if _, exists := rows[e.UpdateID]; exists {
			dup = true
			continue
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		rows[e.UpdateID] = e
	}
	if dup {
		return ErrDupKey
	}
	return nil
}

func (m *MemStore) ListAfter(_ context.Context, userID string, fromUpdateID, limit int64) ([]model.UpdateLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListAfterCalls++
	var out []model.UpdateLogEntry
	for id, e := range m.logs[userID] {
		if id > fromUpdateID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdateID < out[j].UpdateID })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) UsersWithMessage(_ context.Context, messageID string, typ model.UpdateType, userIDs []string) (map[string]struct{}, error) {
	if messageID == "" || len(userIDs) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, uid := range userIDs {
		for _, e := range m.logs[uid] {
			if e.MessageID == messageID && e.Type == typ {
				out[uid] = struct{}{}
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) MaxUpdateID(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for id := range m.logs[userID] {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (m *MemStore) BulkDeliver(_ context.Context, chatID string, userIDs []string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(userIDs) > m.MaxDeliverBatch {
		m.MaxDeliverBatch = len(userIDs)
	}
	if m.BulkDeliverHook != nil {
		if err := m.BulkDeliverHook(chatID, userIDs, seq); err != nil {
			return err
		}
	}
	now := time.Now()
	for _, uid := range userIDs {
		k := deliveryKey(chatID, uid)
		d, ok := m.delivery[k]
		if !ok {
			m.delivery[k] = &model.DeliveryState{
				ChatID:           chatID,
				UserID:           uid,
				LastDeliveredSeq: seq,
				LastReadSeq:      0,
				UpdatedAt:        now,
			}
			continue
		}
		if seq > d.LastDeliveredSeq {
			d.LastDeliveredSeq = seq
		}
		d.UpdatedAt = now
	}
	return nil
}

func (m *MemStore) GetDelivery(_ context.Context, chatID, userID string) (*model.DeliveryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.delivery[deliveryKey(chatID, userID)]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("delivery state", "chat", chatID, "user", userID)
	}
	cp := *d
	return &cp, nil
}

func (m *MemStore) SaveAck(_ context.Context, userID string, pts int64, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckHook != nil {
		if err := m.AckHook(userID); err != nil {
			return 0, err
		}
	}
	if pts > m.acks[userID] {
		m.acks[userID] = pts
	}
	return m.acks[userID], nil
}

func (m *MemStore) LoadAck(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckHook != nil {
		if err := m.AckHook(userID); err != nil {
			return 0, err
		}
	}
	return m.acks[userID], nil
}

// DeliveryCount 测试辅助：目前持有的游标行数
func (m *MemStore) DeliveryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivery)
}

// LogCount 测试辅助：某用户日志行数
func (m *MemStore) LogCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs[userID])
}
