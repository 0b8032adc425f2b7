package stack

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// stackError 携带一次调用栈快照，Error() 输出 err + 栈首帧
type stackError struct {
	err    error
	frames []uintptr
}

func New(err error, skip int) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	return &stackError{err: err, frames: pcs[:n]}
}

func (e *stackError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.err.Error())
	frames := runtime.CallersFrames(e.frames)
	for {
		f, more := frames.Next()
		if f.Function != "" {
			sb.WriteString(" -> ")
			sb.WriteString(trimPkg(f.Function))
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(f.Line))
		}
		if !more {
			break
		}
	}
	return sb.String()
}

func (e *stackError) Unwrap() error { return e.err }

func (e *stackError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		_, _ = s.Write([]byte(e.Error()))
	}
}

func trimPkg(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		return fn[i+1:]
	}
	return fn
}
