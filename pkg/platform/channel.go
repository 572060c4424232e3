package platform

import (
	"slices"
	"sync"
	"sync/atomic"
)

// MethodChannel provides request/response calls into the host. Calls
// only flow from Go to the host.
type MethodChannel struct {
	name string
}

// NewMethodChannel creates a new method channel with the given name.
func NewMethodChannel(name string) *MethodChannel {
	return &MethodChannel{name: name}
}

// Name returns the channel name.
func (c *MethodChannel) Name() string {
	return c.name
}

// Invoke calls a method on the host and returns the decoded result.
// This blocks until the host responds or an error occurs.
func (c *MethodChannel) Invoke(method string, args any) (any, error) {
	return invokeNative(c.name, method, args)
}

// EventHandler receives events from an EventChannel.
type EventHandler struct {
	OnEvent func(data any)
	OnError func(err error)
	OnDone  func()
}

// Subscription represents an active event subscription.
type Subscription struct {
	channel  *EventChannel
	handler  *EventHandler
	canceled atomic.Bool
}

// Cancel stops receiving events on this subscription. It is safe to call
// more than once.
func (s *Subscription) Cancel() {
	if s.canceled.CompareAndSwap(false, true) {
		s.channel.removeSubscription(s)
	}
}

// IsCanceled returns true if this subscription has been canceled.
func (s *Subscription) IsCanceled() bool {
	return s.canceled.Load()
}

// EventChannel carries a stream of events from the host to Go. The host
// side stream runs while the channel has at least one subscriber.
type EventChannel struct {
	name string

	mu   sync.Mutex
	subs []*Subscription
	live bool
}

// NewEventChannel creates a new event channel with the given name.
func NewEventChannel(name string) *EventChannel {
	ch := &EventChannel{name: name}
	registry.events.put(name, ch)
	return ch
}

// Name returns the channel name.
func (c *EventChannel) Name() string {
	return c.name
}

// Listen subscribes to events on this channel. The first subscriber asks
// the host to start the stream. A startup failure goes to handler.OnError
// and the subscription is still returned; the stream is retried when a
// bridge is installed.
func (c *EventChannel) Listen(handler EventHandler) *Subscription {
	sub := &Subscription{channel: c, handler: &handler}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.ensureLive(handler.OnError)
	return sub
}

// ensureLive starts the host stream when the channel has subscribers, a
// bridge is installed and the stream is not already running. A startup
// failure is passed to onError.
func (c *EventChannel) ensureLive(onError func(error)) {
	c.mu.Lock()
	start := !c.live && len(c.subs) > 0 && nativeBridgeInstalled()
	c.live = c.live || start
	c.mu.Unlock()
	if !start {
		return
	}
	if err := startEventStream(c.name); err != nil {
		c.mu.Lock()
		c.live = false
		c.mu.Unlock()
		if onError != nil {
			onError(err)
		}
	}
}

func (c *EventChannel) removeSubscription(sub *Subscription) {
	c.mu.Lock()
	c.subs = slices.DeleteFunc(c.subs, func(s *Subscription) bool { return s == sub })
	stop := len(c.subs) == 0 && c.live
	c.live = c.live && !stop
	c.mu.Unlock()

	if stop {
		// stopEventStream reports its own failures.
		_ = stopEventStream(c.name)
	}
}

// each calls fn for every subscriber still listening, in subscription
// order, without holding c.mu.
func (c *EventChannel) each(fn func(h *EventHandler)) {
	c.mu.Lock()
	subs := slices.Clone(c.subs)
	c.mu.Unlock()
	for _, sub := range subs {
		if !sub.IsCanceled() {
			fn(sub.handler)
		}
	}
}

func (c *EventChannel) dispatchEvent(data any) {
	c.each(func(h *EventHandler) {
		if h.OnEvent != nil {
			h.OnEvent(data)
		}
	})
}

func (c *EventChannel) dispatchError(err error) {
	c.each(func(h *EventHandler) {
		if h.OnError != nil {
			h.OnError(err)
		}
	})
}

// dispatchDone ends the stream: every subscription is canceled without a
// stop request, since the host already closed it.
func (c *EventChannel) dispatchDone() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.live = false
	c.mu.Unlock()

	for _, sub := range subs {
		sub.canceled.Store(true)
		if sub.handler.OnDone != nil {
			sub.handler.OnDone()
		}
	}
}
