package errs

// 同步引擎错误码段：1xxx 通用，2xxx 同步域
const (
	ServerInternalError = 500
	ArgsError           = 1001
	RecordNotFoundError = 1002

	AppendLogError   = 2001
	BulkFallbackErr  = 2002
	FanoutChunkError = 2003
)

var (
	ErrInternal       = NewCodeError(ServerInternalError, "server internal error")
	ErrArgs           = NewCodeError(ArgsError, "args invalid")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")

	// ErrAppendLog 计数器已预留但日志行写入失败（reservation-without-write）
	ErrAppendLog = NewCodeError(AppendLogError, "update log append failed")
	// ErrBulkFallback 批量插入的逐行回退兜底也失败了
	ErrBulkFallback = NewCodeError(BulkFallbackErr, "bulk insert fallback failed")
	// ErrFanoutChunk 扩散分片失败，整个任务交回队列重试
	ErrFanoutChunk = NewCodeError(FanoutChunkError, "fanout chunk failed")
)
