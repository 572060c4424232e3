package platform

import "sync"

// NullCall is one method invocation seen by a NullBridge.
type NullCall struct {
	Channel string
	Method  string
	Args    map[string]any
}

// NullBridge answers every method call with an empty map and records it.
// Against a NullBridge nothing is granted, no location is known and no
// dialog is accepted.
type NullBridge struct {
	mu    sync.Mutex
	calls []NullCall
}

func (b *NullBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	decoded, err := DefaultCodec().Decode(args)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.calls = append(b.calls, NullCall{Channel: channel, Method: method, Args: parseMap(decoded)})
	b.mu.Unlock()
	return DefaultCodec().Encode(map[string]any{})
}

func (b *NullBridge) StartEventStream(string) error { return nil }
func (b *NullBridge) StopEventStream(string) error  { return nil }

// Calls returns the invocations of method on channel, oldest first.
func (b *NullBridge) Calls(channel, method string) []NullCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []NullCall
	for _, c := range b.calls {
		if c.Channel == channel && c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// SetupTestBridge installs a NullBridge and synchronous dispatch, and
// registers ResetForTest with tb's cleanup.
//
//	bridge := platform.SetupTestBridge(t)
func SetupTestBridge(tb interface{ Cleanup(func()) }) *NullBridge {
	b := &NullBridge{}
	SetNativeBridge(b)
	RegisterDispatch(func(cb func()) { cb() })
	tb.Cleanup(ResetForTest)
	return b
}
