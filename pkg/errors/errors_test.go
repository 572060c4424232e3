package errors

import (
	"bytes"
	stderrors "errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := &Error{
		Op:   "flow.BeginUpdates",
		Kind: KindPlatform,
		Err:  stderrors.New("bridge gone"),
	}
	assert.Equal(t, "flow.BeginUpdates [platform]: bridge gone", err.Error())
}

func TestErrorWithChannel(t *testing.T) {
	err := &Error{
		Op:      "stream.parse",
		Kind:    KindParsing,
		Channel: "locate/location/updates",
		Err:     &ParseError{Channel: "locate/location/updates", DataType: "LocationFix", Got: nil},
	}
	assert.Contains(t, err.Error(), "channel=locate/location/updates")
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("cause")
	err := &Error{Op: "op", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindPlatform, "platform"},
		{KindParsing, "parsing"},
		{KindPermission, "permission"},
		{KindAvailability, "availability"},
		{KindFlow, "flow"},
		{KindPanic, "panic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String(), "Kind(%d)", tt.kind)
	}
}

func TestPanicErrorString(t *testing.T) {
	assert.Equal(t, "panic: boom", (&PanicError{Value: "boom"}).Error())
	assert.Equal(t, "panic in host.uiLoop: boom", (&PanicError{Op: "host.uiLoop", Value: "boom"}).Error())
}

func TestParseErrorString(t *testing.T) {
	err := &ParseError{Channel: "locate/test", DataType: "TestEvent", Got: 123}
	assert.Equal(t, "failed to parse TestEvent from channel locate/test: got int", err.Error())
}

func TestReport(t *testing.T) {
	var captured *Error
	withHandler(t, &testHandler{onError: func(err *Error) { captured = err }})

	Report(&Error{Op: "test.report", Kind: KindFlow})

	require.NotNil(t, captured)
	assert.Equal(t, "test.report", captured.Op)
	assert.False(t, captured.Timestamp.IsZero())
}

func TestReportNil(t *testing.T) {
	called := false
	withHandler(t, &testHandler{onError: func(*Error) { called = true }})
	Report(nil)
	assert.False(t, called)
}

func TestRecover(t *testing.T) {
	var captured *PanicError
	withHandler(t, &testHandler{onPanic: func(err *PanicError) { captured = err }})

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	require.NotNil(t, captured)
	assert.Equal(t, "intentional test panic", captured.Value)
	assert.Equal(t, "test.recover", captured.Op)
	assert.NotEmpty(t, captured.StackTrace)
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	require.NotEmpty(t, stack)
	assert.Contains(t, stack, "TestCaptureStack")
	assert.NotContains(t, stack, "runtime.Callers")
}

func TestSetHandlerNil(t *testing.T) {
	old := SetHandler(nil)
	t.Cleanup(func() { SetHandler(old) })

	_, ok := Handler().(*LogHandler)
	assert.True(t, ok, "SetHandler(nil) should install a LogHandler, got %T", Handler())
}

func TestLogHandlerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := NewLogHandler(&logger)

	h.HandleError(&Error{
		Op:        "permissions.request",
		Kind:      KindPermission,
		Channel:   "locate/permissions",
		Err:       stderrors.New("denied"),
		Timestamp: time.Now(),
	})

	out := buf.String()
	assert.Contains(t, out, `"op":"permissions.request"`)
	assert.Contains(t, out, `"kind":"permission"`)
	assert.Contains(t, out, `"channel":"locate/permissions"`)
	assert.Contains(t, out, `"error":"denied"`)
}

func withHandler(t *testing.T, h ErrorHandler) {
	t.Helper()
	old := SetHandler(h)
	t.Cleanup(func() { SetHandler(old) })
}

type testHandler struct {
	onError func(*Error)
	onPanic func(*PanicError)
}

func (h *testHandler) HandleError(err *Error) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}
