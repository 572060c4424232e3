package errors

import (
	"os"

	"github.com/rs/zerolog"
)

// LogHandler is an ErrorHandler that writes errors to a zerolog logger.
type LogHandler struct {
	// Verbose includes stack traces in the log events.
	Verbose bool

	logger zerolog.Logger
}

// NewLogHandler returns a LogHandler writing to logger.
// A nil logger selects a stderr logger with timestamps.
func NewLogHandler(logger *zerolog.Logger) *LogHandler {
	if logger == nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		return &LogHandler{logger: l}
	}
	return &LogHandler{logger: *logger}
}

// HandleError logs an Error at error level.
func (h *LogHandler) HandleError(err *Error) {
	if err == nil {
		return
	}
	ev := h.logger.Error().
		Err(err.Err).
		Str("op", err.Op).
		Stringer("kind", err.Kind).
		Time("at", err.Timestamp)
	if err.Channel != "" {
		ev = ev.Str("channel", err.Channel)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("locate error")
}

// HandlePanic logs a PanicError at error level.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	ev := h.logger.Error().
		Interface("value", err.Value).
		Str("op", err.Op)
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("locate panic")
}
