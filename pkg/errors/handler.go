package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

type handlerSlot struct{ h ErrorHandler }

var current atomic.Pointer[handlerSlot]

func init() {
	current.Store(&handlerSlot{h: NewLogHandler(nil)})
}

// Handler returns the installed error handler.
func Handler() ErrorHandler {
	return current.Load().h
}

// SetHandler installs h as the process-wide error handler and returns the
// one it replaced. nil restores a stderr LogHandler.
func SetHandler(h ErrorHandler) (previous ErrorHandler) {
	if h == nil {
		h = NewLogHandler(nil)
	}
	return current.Swap(&handlerSlot{h: h}).h
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// Report stamps err and hands it to the installed handler.
func Report(err *Error) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	Handler().HandleError(err)
}

// ReportPanic stamps err and hands it to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	Handler().HandlePanic(err)
}

// Recover reports a panic in progress and swallows it. It must be called
// directly by a deferred statement:
//
//	defer errors.Recover("host.loop")
func Recover(op string) {
	r := recover()
	if r == nil {
		return
	}
	ReportPanic(&PanicError{
		Op:         op,
		Value:      r,
		StackTrace: CaptureStack(),
	})
}

// CaptureStack formats the caller's stack, one "function\n\tfile:line"
// entry per frame. Frames inside the Go runtime are left out.
func CaptureStack() string {
	var pcs [48]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return sb.String()
}
