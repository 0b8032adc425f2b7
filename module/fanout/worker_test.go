package fanout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"PSync/global/config"
	"PSync/module/sync/service"
	"PSync/module/sync/store"
)

func testFanoutConfig() config.FanoutConfig {
	return config.FanoutConfig{ChunkSize: 1000, Concurrency: 4}
}

func newTestWorker(ms *store.MemStore, cfg config.FanoutConfig) *Worker {
	svc := service.NewService(service.Options{
		Config: config.SyncConfig{
			AppendChunkSize: 200,
			GetUpdatesLimit: 100,
			GetUpdatesMax:   500,
		},
		Counter: ms,
		Log:     ms,
		Ack:     ms,
	})
	return NewWorker(cfg, ms, svc)
}

func recipients(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("r-%d", i)
	}
	return out
}

func TestHandleJobLargeGroup(t *testing.T) {
	ms := store.NewMemStore()
	w := newTestWorker(ms, testFanoutConfig())

	job := &Job{
		MessageID: "m1", ChatID: "g1", ChatType: "group",
		Seq: 42, SenderID: "s1", RecipientIDs: recipients(2500),
	}
	if got := w.ChunkCount(2500); got != 3 {
		t.Fatalf("chunkCount=%d, want 3", got)
	}
	if err := w.HandleJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	if n := ms.DeliveryCount(); n != 2500 {
		t.Fatalf("delivery rows=%d, want 2500", n)
	}
	if ms.MaxDeliverBatch > 1000 {
		t.Fatalf("deliver batch exceeded chunk size: %d", ms.MaxDeliverBatch)
	}
	// 日志批量受 append 自己的分片约束，和扩散分片互相独立
	if ms.MaxInsertBatch > 200 {
		t.Fatalf("insert batch exceeded append chunk size: %d", ms.MaxInsertBatch)
	}
	for _, uid := range []string{"r-0", "r-1234", "r-2499"} {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("recipient %s log rows=%d, want 1", uid, n)
		}
		d, err := ms.GetDelivery(context.Background(), "g1", uid)
		if err != nil {
			t.Fatal(err)
		}
		if d.LastDeliveredSeq != 42 {
			t.Fatalf("recipient %s lastDeliveredSeq=%d, want 42", uid, d.LastDeliveredSeq)
		}
		if d.LastReadSeq != 0 {
			t.Fatalf("recipient %s lastReadSeq=%d, want 0 on first contact", uid, d.LastReadSeq)
		}
	}
}

// 首片失败 → 整个任务报错退回队列；重投一次后每个收件人
// 恰好一行游标、一行日志
func TestHandleJobChunkFailureThenRetry(t *testing.T) {
	ms := store.NewMemStore()
	w := newTestWorker(ms, testFanoutConfig())
	ctx := context.Background()

	failOnce := true
	ms.BulkDeliverHook = func(chatID string, userIDs []string, seq int64) error {
		if failOnce {
			failOnce = false
			return errors.New("mongo hiccup")
		}
		return nil
	}

	job := &Job{
		MessageID: "m2", ChatID: "g2", ChatType: "group",
		Seq: 7, SenderID: "s1", RecipientIDs: recipients(1500),
	}
	if err := w.HandleJob(ctx, job); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	if st := w.Stats(); st.JobsFail != 1 {
		t.Fatalf("jobsFail=%d, want 1", st.JobsFail)
	}

	// 队列重投
	if err := w.HandleJob(ctx, job); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if n := ms.DeliveryCount(); n != 1500 {
		t.Fatalf("delivery rows=%d, want 1500", n)
	}
	for _, uid := range []string{"r-0", "r-999", "r-1499"} {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("recipient %s log rows=%d after retry, want 1", uid, n)
		}
	}
}

// 第二片失败：第一片已经提交（游标 + 日志都落了）。重投整个任务后，
// 已提交片的成员不得出现第二行日志，也不得再被预留新 id。
func TestHandleJobRetryAfterPartialCommit(t *testing.T) {
	ms := store.NewMemStore()
	w := newTestWorker(ms, testFanoutConfig())
	ctx := context.Background()

	deliverCalls := 0
	ms.BulkDeliverHook = func(chatID string, userIDs []string, seq int64) error {
		deliverCalls++
		if deliverCalls == 2 {
			return errors.New("mongo hiccup on second chunk")
		}
		return nil
	}

	job := &Job{
		MessageID: "m5", ChatID: "g3", ChatType: "group",
		Seq: 11, SenderID: "s1", RecipientIDs: recipients(1500),
	}
	if err := w.HandleJob(ctx, job); err == nil {
		t.Fatal("expected failure on the second chunk")
	}
	// 第一片已落：1000 个游标行
	if n := ms.DeliveryCount(); n != 1000 {
		t.Fatalf("delivery rows after partial commit=%d, want 1000", n)
	}

	// 队列重投
	if err := w.HandleJob(ctx, job); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if n := ms.DeliveryCount(); n != 1500 {
		t.Fatalf("delivery rows=%d, want 1500", n)
	}
	for _, uid := range []string{"r-0", "r-500", "r-999", "r-1000", "r-1499"} {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("recipient %s log rows=%d after retry, want exactly 1", uid, n)
		}
		pts, err := ms.Get(ctx, uid)
		if err != nil {
			t.Fatal(err)
		}
		if pts != 1 {
			t.Fatalf("recipient %s pts=%d, want 1 (no re-reservation on retry)", uid, pts)
		}
	}
}

func TestHandleJobEmptyRecipients(t *testing.T) {
	ms := store.NewMemStore()
	w := newTestWorker(ms, testFanoutConfig())

	job := &Job{MessageID: "m3", ChatID: "c1", Seq: 1, RecipientIDs: nil}
	if err := w.HandleJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if st := w.Stats(); st.EmptyJobs != 1 || st.JobsDone != 0 {
		t.Fatalf("stats=%+v, want one empty job", st)
	}
	if ms.DeliveryCount() != 0 {
		t.Fatal("empty job must not write anything")
	}
}

func TestHandleJobDedupesRecipients(t *testing.T) {
	ms := store.NewMemStore()
	w := newTestWorker(ms, testFanoutConfig())

	job := &Job{
		MessageID: "m4", ChatID: "c1", Seq: 3,
		RecipientIDs: []string{"a", "b", "a", "b", "", "c"},
	}
	if err := w.HandleJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if n := ms.DeliveryCount(); n != 3 {
		t.Fatalf("delivery rows=%d, want 3", n)
	}
	for _, uid := range []string{"a", "b", "c"} {
		if n := ms.LogCount(uid); n != 1 {
			t.Fatalf("recipient %s log rows=%d, want 1", uid, n)
		}
	}
}

// 重投幂等：游标 $max 不回退，同一 seq 重复送达不翻倍
func TestBulkDeliverIdempotentOnRedeliver(t *testing.T) {
	ms := store.NewMemStore()
	ctx := context.Background()

	if err := ms.BulkDeliver(ctx, "c1", []string{"u1"}, 5); err != nil {
		t.Fatal(err)
	}
	if err := ms.BulkDeliver(ctx, "c1", []string{"u1"}, 5); err != nil {
		t.Fatal(err)
	}
	if err := ms.BulkDeliver(ctx, "c1", []string{"u1"}, 3); err != nil { // 乱序旧 seq
		t.Fatal(err)
	}
	d, err := ms.GetDelivery(ctx, "c1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if d.LastDeliveredSeq != 5 {
		t.Fatalf("lastDeliveredSeq=%d, want 5", d.LastDeliveredSeq)
	}
	if ms.DeliveryCount() != 1 {
		t.Fatalf("delivery rows=%d, want 1", ms.DeliveryCount())
	}
}
