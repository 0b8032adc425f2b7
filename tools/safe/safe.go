package safe

import (
	"PSync/logger"
	"PSync/tools/errs"
)

// Go 启动一个带 panic 回收的 goroutine，避免单个等待者/消费者炸掉整个进程
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %s panic recovered: %v", name, errs.ErrPanic(r))
			}
		}()
		f()
	}()
}

// ClampInt 把 v 压进 [lo, hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt64 同 ClampInt
func ClampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
