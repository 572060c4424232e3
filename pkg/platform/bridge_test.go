package platform

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	Channel string
	Method  string
	Args    map[string]any
}

// scriptedBridge answers method calls from per-method handlers and records
// every call and stream start/stop.
type scriptedBridge struct {
	mu       sync.Mutex
	calls    []call
	handlers map[string]func(args map[string]any) (any, error)
	started  map[string]int
	stopped  map[string]int
}

func newScriptedBridge(t *testing.T) *scriptedBridge {
	t.Helper()
	b := &scriptedBridge{
		handlers: make(map[string]func(map[string]any) (any, error)),
		started:  make(map[string]int),
		stopped:  make(map[string]int),
	}
	SetNativeBridge(b)
	RegisterDispatch(func(cb func()) { cb() })
	t.Cleanup(ResetForTest)
	return b
}

func (b *scriptedBridge) on(channel, method string, fn func(args map[string]any) (any, error)) {
	b.mu.Lock()
	b.handlers[channel+"#"+method] = fn
	b.mu.Unlock()
}

func (b *scriptedBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	decoded, err := DefaultCodec().Decode(args)
	if err != nil {
		return nil, err
	}
	m := parseMap(decoded)
	b.mu.Lock()
	b.calls = append(b.calls, call{Channel: channel, Method: method, Args: m})
	fn := b.handlers[channel+"#"+method]
	b.mu.Unlock()

	var result any
	if fn != nil {
		result, err = fn(m)
		if err != nil {
			return nil, err
		}
	}
	return DefaultCodec().Encode(result)
}

func (b *scriptedBridge) StartEventStream(channel string) error {
	b.mu.Lock()
	b.started[channel]++
	b.mu.Unlock()
	return nil
}

func (b *scriptedBridge) StopEventStream(channel string) error {
	b.mu.Lock()
	b.stopped[channel]++
	b.mu.Unlock()
	return nil
}

func (b *scriptedBridge) callsTo(channel, method string) []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []call
	for _, c := range b.calls {
		if c.Channel == channel && c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func emit(t *testing.T, channel string, payload any) {
	t.Helper()
	data, err := DefaultCodec().Encode(payload)
	require.NoError(t, err)
	require.NoError(t, HandleEvent(channel, data))
}
