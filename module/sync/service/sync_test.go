package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"PSync/global/config"
	"PSync/module/sync/model"
	"PSync/module/sync/store"
)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		AppendChunkSize:  200,
		GetUpdatesLimit:  100,
		GetUpdatesMax:    500,
		WaitMinTimeoutMs: 50,
		WaitMaxTimeoutMs: 2000,
		PollIntervalMs:   500,
		AckTTLHours:      1,
		WakeChannel:      "test:wake",
	}
}

func newTestService(ms *store.MemStore) *Service {
	return NewService(Options{
		Config:  testSyncConfig(),
		Counter: ms,
		Log:     ms,
		Ack:     ms,
	})
}

func TestAppendUpdateMonotonic(t *testing.T) {
	ms := store.NewMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	var last int64
	for i := 0; i < 50; i++ {
		id, err := svc.AppendUpdate(ctx, model.AppendParams{
			UserID: "u1", Type: model.UpdateTypeMessage, ChatID: "c1", Seq: int64(i + 1),
		})
		if err != nil {
			t.Fatalf("AppendUpdate #%d: %v", i, err)
		}
		if id <= last {
			t.Fatalf("updateId not strictly increasing: got %d after %d", id, last)
		}
		last = id
	}
	if last != 50 {
		t.Fatalf("expected final updateId 50, got %d", last)
	}
	if n := ms.LogCount("u1"); n != 50 {
		t.Fatalf("expected 50 log rows, got %d", n)
	}
}

func TestAppendUpdateRejectsBadArgs(t *testing.T) {
	svc := newTestService(store.NewMemStore())
	if _, err := svc.AppendUpdate(context.Background(), model.AppendParams{UserID: "", ChatID: "c1"}); err == nil {
		t.Fatal("expected error for empty userId")
	}
	if _, err := svc.AppendUpdate(context.Background(), model.AppendParams{UserID: "u1", ChatID: ""}); err == nil {
		t.Fatal("expected error for empty chatId")
	}
}

// 行写失败时预留不回滚：counter 领先 log，Diagnose 能看见缺口
type failingLog struct {
	*store.MemStore
	failUpsert bool
}

func (f *failingLog) UpsertRow(ctx context.Context, e *model.UpdateLogEntry) error {
	if f.failUpsert {
		return errors.New("log store down")
	}
	return f.MemStore.UpsertRow(ctx, e)
}

func TestAppendUpdateReservationSurvivesRowFailure(t *testing.T) {
	ms := store.NewMemStore()
	fl := &failingLog{MemStore: ms, failUpsert: true}
	svc := NewService(Options{Config: testSyncConfig(), Counter: ms, Log: fl, Ack: ms})
	ctx := context.Background()

	if _, err := svc.AppendUpdate(ctx, model.AppendParams{UserID: "u1", ChatID: "c1"}); err == nil {
		t.Fatal("expected append error when row write fails")
	}
	pts, err := svc.GetUpdateID(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if pts != 1 {
		t.Fatalf("reservation should survive row failure, pts=%d", pts)
	}
	pending, err := svc.Diagnose(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Fatalf("expected pending gap 1, got %d", pending)
	}

	// 存储恢复后追加照常，水位继续走
	fl.failUpsert = false
	id, err := svc.AppendUpdate(ctx, model.AppendParams{UserID: "u1", ChatID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Fatalf("expected updateId 2 after recovery, got %d", id)
	}
}

func TestAppendUpdatesChunkBound(t *testing.T) {
	ms := store.NewMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	users := make([]string, 10000)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
	}
	err := svc.AppendUpdates(ctx, users, model.AppendParams{
		Type: model.UpdateTypeMessage, ChatID: "big-group", Seq: 7, MessageID: "m1",
	})
	if err != nil {
		t.Fatal(err)
	}

	if ms.MaxInsertBatch > 200 {
		t.Fatalf("insert batch exceeded chunk size: %d", ms.MaxInsertBatch)
	}
	if ms.InsertManyCalls != 50 {
		t.Fatalf("expected 50 bulk inserts, got %d", ms.InsertManyCalls)
	}
	for _, uid := range []string{"user-0", "user-4999", "user-9999"} {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("user %s expected exactly 1 row, got %d", uid, n)
		}
	}
}

func TestAppendUpdatesDedupesRecipients(t *testing.T) {
	ms := store.NewMemStore()
	svc := newTestService(ms)

	err := svc.AppendUpdates(context.Background(),
		[]string{"a", "b", "a", "", "b", "c"},
		model.AppendParams{Type: model.UpdateTypeMessage, ChatID: "c1", Seq: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, uid := range []string{"a", "b", "c"} {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("user %s expected 1 row, got %d", uid, n)
		}
	}
}

func TestAppendUpdatesBulkFallback(t *testing.T) {
	ms := store.NewMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	// 批插整体报错 → 逐行 upsert 兜底，行一条不丢、一条不重
	failed := false
	ms.InsertManyHook = func(rows []model.UpdateLogEntry) error {
		if !failed {
			failed = true
			return errors.New("transient bulk failure")
		}
		return nil
	}
	users := []string{"x", "y", "z"}
	err := svc.AppendUpdates(ctx, users, model.AppendParams{
		Type: model.UpdateTypeMessage, ChatID: "c1", Seq: 2,
	})
	if err != nil {
		t.Fatalf("fallback path should succeed: %v", err)
	}
	if ms.UpsertCalls != len(users) {
		t.Fatalf("expected %d row upserts, got %d", len(users), ms.UpsertCalls)
	}
	for _, uid := range users {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("user %s expected 1 row, got %d", uid, n)
		}
	}
}

// 同一消息的批量追加重放一遍：已提交的成员整体跳过，
// 既不多一行日志，也不多走一次计数器
func TestAppendUpdatesIdempotentPerMessage(t *testing.T) {
	ms := store.NewMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	users := []string{"a", "b", "c"}
	params := model.AppendParams{
		Type: model.UpdateTypeMessage, ChatID: "c1", Seq: 4, MessageID: "m-dup",
	}
	for i := 0; i < 2; i++ {
		if err := svc.AppendUpdates(ctx, users, params); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	for _, uid := range users {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("user %s log rows=%d, want 1", uid, n)
		}
		pts, err := svc.GetUpdateID(ctx, uid)
		if err != nil {
			t.Fatal(err)
		}
		if pts != 1 {
			t.Fatalf("user %s pts=%d, want 1 (replay must not reserve)", uid, pts)
		}
	}

	// 不同消息照常追加
	params.MessageID = "m-next"
	if err := svc.AppendUpdates(ctx, users, params); err != nil {
		t.Fatal(err)
	}
	if n := ms.LogCount("a"); n != 2 {
		t.Fatalf("log rows=%d after second message, want 2", n)
	}
}

func TestAppendUpdatesEmptyNoop(t *testing.T) {
	ms := store.NewMemStore()
	svc := newTestService(ms)
	if err := svc.AppendUpdates(context.Background(), nil, model.AppendParams{ChatID: "c1"}); err != nil {
		t.Fatal(err)
	}
	if ms.InsertManyCalls != 0 {
		t.Fatalf("empty recipient set must not touch the log store")
	}
}

func TestGetUpdatesLimitClamp(t *testing.T) {
	ms := store.NewMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	for i := 0; i < 600; i++ {
		if _, err := svc.AppendUpdate(ctx, model.AppendParams{UserID: "u1", ChatID: "c1"}); err != nil {
			t.Fatal(err)
		}
	}

	// limit 0 → 默认 100
	updates, last, err := svc.GetUpdates(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 100 || last != 100 {
		t.Fatalf("default limit: got %d rows, last=%d", len(updates), last)
	}

	// 超大 limit → 服务端硬上限 500
	updates, _, err = svc.GetUpdates(ctx, "u1", 0, 99999)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 500 {
		t.Fatalf("server cap: got %d rows", len(updates))
	}

	// 空结果时 lastUpdateID 回传 from
	updates, last, err = svc.GetUpdates(ctx, "u1", 600, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 0 || last != 600 {
		t.Fatalf("empty result: got %d rows, last=%d", len(updates), last)
	}
}
