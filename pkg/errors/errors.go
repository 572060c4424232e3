// Package errors provides structured error reporting for locate.
//
// Nothing in the location flow is allowed to crash the host: platform,
// parsing and permission failures are wrapped in an *Error and handed to
// Report, which forwards them to the installed ErrorHandler.
package errors

import (
	"fmt"
	"time"
)

// Kind identifies the category of an error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindPlatform indicates a platform channel or native bridge error.
	KindPlatform
	// KindParsing indicates an event payload could not be decoded.
	KindParsing
	// KindPermission indicates a permission result that could not be applied.
	KindPermission
	// KindAvailability indicates the location service is not available.
	KindAvailability
	// KindFlow indicates an invalid state machine transition.
	KindFlow
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindParsing:
		return "parsing"
	case KindPermission:
		return "permission"
	case KindAvailability:
		return "availability"
	case KindFlow:
		return "flow"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying the failed operation and,
// when it came through a platform channel, the channel name.
type Error struct {
	// Op is the operation that failed (e.g., "flow.OnPermissionResult").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Err is the underlying error.
	Err error
	// Channel is the platform channel name, if applicable.
	Channel string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("%s [%s] channel=%s: %v", e.Op, e.Kind, e.Channel, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "host.uiLoop").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a failure to decode a platform payload.
type ParseError struct {
	// Channel is the platform channel that delivered the payload.
	Channel string
	// DataType is the expected type name.
	DataType string
	// Got is the actual data received.
	Got any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from channel %s: got %T", e.DataType, e.Channel, e.Got)
}

// ErrorHandler receives errors reported through Report and ReportPanic.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *Error)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
