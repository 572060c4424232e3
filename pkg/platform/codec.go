// Package platform provides the channel layer between locate's Go code and
// the host that owns permissions, positioning and dialogs.
//
// Go calls into the host through MethodChannels and receives asynchronous
// results (permission results, location fixes, lifecycle changes) through
// EventChannels. On a phone the host is the native shell; on a desktop it is
// the terminal host in internal/host.
package platform

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// MessageCodec encodes and decodes messages for platform channel communication.
type MessageCodec interface {
	// Encode converts a Go value to bytes for transmission to the host.
	Encode(value any) ([]byte, error)

	// Decode converts bytes received from the host to a Go value.
	Decode(data []byte) (any, error)
}

// JsonCodec implements MessageCodec using JSON encoding.
type JsonCodec struct{}

// Encode serializes the value to JSON bytes.
func (c JsonCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode deserializes JSON bytes to a Go value.
func (c JsonCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CborCodec implements MessageCodec using CBOR. Maps decode to
// map[string]any so payload parsers work unchanged across codecs.
type CborCodec struct {
	dec cbor.DecMode
}

// NewCborCodec returns a CborCodec decoding maps with string keys.
func NewCborCodec() (*CborCodec, error) {
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CborCodec{dec: dec}, nil
}

// Encode serializes the value to CBOR bytes.
func (c *CborCodec) Encode(value any) ([]byte, error) {
	return cbor.Marshal(value)
}

// Decode deserializes CBOR bytes to a Go value.
func (c *CborCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := c.dec.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

var (
	codecMu      sync.RWMutex
	defaultCodec MessageCodec = JsonCodec{}
)

// DefaultCodec returns the codec used by platform channels.
func DefaultCodec() MessageCodec {
	codecMu.RLock()
	defer codecMu.RUnlock()
	return defaultCodec
}

// SetCodec replaces the codec used by platform channels. The host must
// use the same codec. Passing nil restores JSON.
func SetCodec(c MessageCodec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if c == nil {
		c = JsonCodec{}
	}
	defaultCodec = c
}

// Standard errors for platform channel operations.
var (
	// ErrChannelNotFound indicates the requested platform channel does not exist.
	ErrChannelNotFound = errors.New("platform channel not found")

	// ErrMethodNotFound indicates the method is not implemented by the host.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments indicates the arguments passed to the method were invalid.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrPlatformUnavailable indicates no host bridge is installed.
	ErrPlatformUnavailable = errors.New("platform feature unavailable")

	// ErrTimeout indicates the operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates the operation was canceled via context cancellation.
	ErrCanceled = errors.New("operation was canceled")
)

// ChannelError represents an error returned by the host.
type ChannelError struct {
	Code    string `json:"code" cbor:"code"`
	Message string `json:"message" cbor:"message"`
	Details any    `json:"details,omitempty" cbor:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewChannelError creates a new ChannelError with the given code and message.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}
