package platform

import (
	"fmt"
	"sync"

	"github.com/go-drift/locate/pkg/errors"
)

// table is a name-indexed set of channels. Registering a name again
// replaces the earlier channel.
type table[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

func (t *table[T]) put(name string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[string]T)
	}
	t.m[name] = v
}

func (t *table[T]) get(name string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[name]
	return v, ok
}

func (t *table[T]) values() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.m))
	for _, v := range t.m {
		out = append(out, v)
	}
	return out
}

var registry struct {
	events table[*EventChannel]
}

// NativeBridge is the host side of the platform channels.
type NativeBridge interface {
	// InvokeMethod calls a method on the host.
	InvokeMethod(channel, method string, args []byte) ([]byte, error)

	// StartEventStream tells the host to start sending events for a channel.
	StartEventStream(channel string) error

	// StopEventStream tells the host to stop sending events for a channel.
	StopEventStream(channel string) error
}

var (
	bridgeMu     sync.RWMutex
	nativeBridge NativeBridge
)

// builtinInits holds functions that install the package's own event
// listeners (lifecycle, permission results). ResetForTest replays them.
var builtinInits []func()

func registerBuiltinInit(fn func()) {
	builtinInits = append(builtinInits, fn)
	fn()
}

func currentBridge() NativeBridge {
	bridgeMu.RLock()
	defer bridgeMu.RUnlock()
	return nativeBridge
}

func nativeBridgeInstalled() bool {
	return currentBridge() != nil
}

// SetNativeBridge installs the host bridge.
//
// Event channels that gained subscribers before a bridge existed (package
// init listeners, early flow wiring) have their streams started now.
// Startup errors are dispatched to those subscribers' error handlers.
func SetNativeBridge(bridge NativeBridge) {
	bridgeMu.Lock()
	nativeBridge = bridge
	bridgeMu.Unlock()
	if bridge == nil {
		return
	}

	for _, ch := range registry.events.values() {
		ch.ensureLive(ch.dispatchError)
	}
}

func invokeNative(channel, method string, args any) (any, error) {
	bridge := currentBridge()
	if bridge == nil {
		return nil, ErrPlatformUnavailable
	}

	codec := DefaultCodec()
	argsData, err := codec.Encode(args)
	if err != nil {
		return nil, err
	}

	resultData, err := bridge.InvokeMethod(channel, method, argsData)
	if err != nil {
		return nil, err
	}

	return codec.Decode(resultData)
}

func startEventStream(channel string) error {
	return controlStream("platform.startEventStream", channel, NativeBridge.StartEventStream)
}

func stopEventStream(channel string) error {
	return controlStream("platform.stopEventStream", channel, NativeBridge.StopEventStream)
}

// controlStream runs a start or stop request against the installed bridge
// and reports a failure before returning it.
func controlStream(op, channel string, fn func(NativeBridge, string) error) error {
	bridge := currentBridge()
	if bridge == nil {
		return ErrPlatformUnavailable
	}
	if err := fn(bridge, channel); err != nil {
		errors.Report(&errors.Error{
			Op:      op,
			Kind:    errors.KindPlatform,
			Channel: channel,
			Err:     err,
		})
		return err
	}
	return nil
}

// ErrChannelNotRegistered is returned when an event arrives for an unregistered channel.
var ErrChannelNotRegistered = fmt.Errorf("event channel not registered")

func lookupEventChannel(op, channel string) (*EventChannel, error) {
	ch, ok := registry.events.get(channel)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrChannelNotRegistered, channel)
		errors.Report(&errors.Error{
			Op:      op,
			Kind:    errors.KindPlatform,
			Channel: channel,
			Err:     err,
		})
		return nil, err
	}
	return ch, nil
}

// HandleEvent is called by the host when it sends an event.
func HandleEvent(channel string, eventData []byte) error {
	ch, err := lookupEventChannel("platform.HandleEvent", channel)
	if err != nil {
		return err
	}

	data, err := DefaultCodec().Decode(eventData)
	if err != nil {
		ch.dispatchError(err)
		return err
	}

	ch.dispatchEvent(data)
	return nil
}

// HandleEventError is called by the host when an event stream errors.
func HandleEventError(channel string, code, message string) error {
	ch, err := lookupEventChannel("platform.HandleEventError", channel)
	if err != nil {
		return err
	}
	ch.dispatchError(NewChannelError(code, message))
	return nil
}

// HandleEventDone is called by the host when an event stream ends.
func HandleEventDone(channel string) error {
	ch, err := lookupEventChannel("platform.HandleEventDone", channel)
	if err != nil {
		return err
	}
	ch.dispatchDone()
	return nil
}

// ResetForTest resets all global platform state for test isolation: the
// bridge, codec, dispatcher, lifecycle state and every event subscription.
// The package's own listeners are then reinstalled so it behaves as if
// freshly initialized. This should only be called from tests.
func ResetForTest() {
	SetNativeBridge(nil)
	SetCodec(nil)
	RegisterDispatch(nil)

	Lifecycle.mu.Lock()
	Lifecycle.state = LifecycleStateResumed
	Lifecycle.handlers = Lifecycle.handlers[:0]
	Lifecycle.mu.Unlock()

	for _, ch := range registry.events.values() {
		ch.mu.Lock()
		ch.subs = nil
		ch.live = false
		ch.mu.Unlock()
	}

	for _, fn := range builtinInits {
		fn()
	}
}
