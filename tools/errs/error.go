package errs

import (
	"fmt"
	"strings"

	"PSync/tools/errs/stack"
)

type Error interface {
	Is(err error) bool
	Wrap() error
	WrapMsg(msg string, kv ...any) error
	error
}

// New 格式化构造一个普通错误（fmt 风格）
func New(format string, args ...any) *fmtError {
	return &fmtError{s: fmt.Sprintf(format, args...)}
}

type fmtError struct {
	s string
}

func (e *fmtError) Error() string { return e.s }

func (e *fmtError) Is(err error) bool {
	if err == nil {
		return false
	}
	return e.s == Unwrap(err).Error()
}

func (e *fmtError) Wrap() error { return stack.New(e, stackSkip) }

func (e *fmtError) WrapMsg(msg string, kv ...any) error {
	return stack.New(NewErrorWrapper(e, toString(msg, kv)), stackSkip)
}

// errorWrapper 给底层错误挂上补充说明
type errorWrapper struct {
	err error
	msg string
}

func NewErrorWrapper(err error, msg string) error {
	return &errorWrapper{err: err, msg: msg}
}

func (w *errorWrapper) Error() string {
	if w.msg == "" {
		return w.err.Error()
	}
	return w.msg + ": " + w.err.Error()
}

func (w *errorWrapper) Unwrap() error { return w.err }

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		}
	}
	return sb.String()
}
