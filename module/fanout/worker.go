package fanout

import (
	"context"
	"sync/atomic"

	"PSync/global/config"
	"PSync/logger"
	"PSync/module/sync/model"
	"PSync/module/sync/service"
	"PSync/module/sync/store"
	"PSync/tools/errs"
)

// Worker 把一个消息事件展开成每收件人的送达游标 + 日志行。
// 任务级并发由信号量封顶，与单任务内的分片大小互相独立：
// 群再大也压不穿存储。
type Worker struct {
	cfg      config.FanoutConfig
	delivery store.DeliveryStore
	sync     *service.Service
	sem      chan struct{}

	jobsDone  atomic.Int64
	emptyJobs atomic.Int64
	jobsFail  atomic.Int64
}

func NewWorker(cfg config.FanoutConfig, delivery store.DeliveryStore, syncSvc *service.Service) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	return &Worker{
		cfg:      cfg,
		delivery: delivery,
		sync:     syncSvc,
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// HandleJob 任一分片失败就让整个任务失败，交回队列退避重投。
// 两类写都幂等（$max 游标、insert-if-absent 日志行），重投只会
// 把已提交的分片再确认一遍，不会翻倍。
func (w *Worker) HandleJob(ctx context.Context, job *Job) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.sem }()

	recipients := dedupe(job.RecipientIDs)
	if len(recipients) == 0 {
		w.emptyJobs.Add(1)
		logger.Debug("fanout empty recipient set, noop")
		return nil
	}

	for start := 0; start < len(recipients); start += w.cfg.ChunkSize {
		end := start + w.cfg.ChunkSize
		if end > len(recipients) {
			end = len(recipients)
		}
		chunk := recipients[start:end]

		// 先游标后日志：顺序固定，失败点之前的写重投安全
		if err := w.delivery.BulkDeliver(ctx, job.ChatID, chunk, job.Seq); err != nil {
			w.jobsFail.Add(1)
			return errs.ErrFanoutChunk.WrapMsg(err.Error(),
				"chat", job.ChatID, "chunk", start/w.cfg.ChunkSize, "size", len(chunk))
		}
		if err := w.sync.AppendUpdates(ctx, chunk, model.AppendParams{
			Type:      model.UpdateTypeMessage,
			ChatID:    job.ChatID,
			Seq:       job.Seq,
			MessageID: job.MessageID,
		}); err != nil {
			w.jobsFail.Add(1)
			return errs.ErrFanoutChunk.WrapMsg(err.Error(),
				"chat", job.ChatID, "chunk", start/w.cfg.ChunkSize, "size", len(chunk))
		}
	}

	w.jobsDone.Add(1)
	return nil
}

// ChunkCount 给定收件人数会切出多少片
func (w *Worker) ChunkCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + w.cfg.ChunkSize - 1) / w.cfg.ChunkSize
}

type Stats struct {
	JobsDone  int64
	EmptyJobs int64
	JobsFail  int64
}

func (w *Worker) Stats() Stats {
	return Stats{
		JobsDone:  w.jobsDone.Load(),
		EmptyJobs: w.emptyJobs.Load(),
		JobsFail:  w.jobsFail.Load(),
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
