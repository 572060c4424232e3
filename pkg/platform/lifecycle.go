package platform

import (
	"sync"

	"github.com/go-drift/locate/pkg/errors"
)

// LifecycleState is the visibility state of the screen hosting the flow.
type LifecycleState string

const (
	// LifecycleStateResumed indicates the screen is visible and interactive.
	LifecycleStateResumed LifecycleState = "resumed"

	// LifecycleStateInactive indicates the screen is visible but covered,
	// for example by a system permission dialog.
	LifecycleStateInactive LifecycleState = "inactive"

	// LifecycleStatePaused indicates the screen is not visible.
	LifecycleStatePaused LifecycleState = "paused"

	// LifecycleStateDetached indicates the screen has been torn down.
	LifecycleStateDetached LifecycleState = "detached"
)

// LifecycleHandler is called when lifecycle state changes.
type LifecycleHandler func(state LifecycleState)

const lifecycleEventsChannelName = "locate/lifecycle/events"

// LifecycleService tracks the hosting screen's lifecycle.
type LifecycleService struct {
	events   *EventChannel
	state    LifecycleState
	handlers []lifecycleEntry
	nextID   int
	mu       sync.RWMutex
}

type lifecycleEntry struct {
	id int
	fn LifecycleHandler
}

// Lifecycle is the singleton lifecycle service.
var Lifecycle = &LifecycleService{
	events: NewEventChannel(lifecycleEventsChannelName),
	state:  LifecycleStateResumed,
}

func init() {
	registerBuiltinInit(func() {
		Lifecycle.events.Listen(EventHandler{
			OnEvent: func(data any) {
				state := parseString(parseMap(data)["state"])
				if state == "" {
					errors.Report(&errors.Error{
						Op:      "lifecycle.parseEvent",
						Kind:    errors.KindParsing,
						Channel: lifecycleEventsChannelName,
						Err: &errors.ParseError{
							Channel:  lifecycleEventsChannelName,
							DataType: "LifecycleState",
							Got:      data,
						},
					})
					return
				}
				Lifecycle.updateState(LifecycleState(state))
			},
			OnError: func(err error) {
				errors.Report(&errors.Error{
					Op:      "lifecycle.streamError",
					Kind:    errors.KindPlatform,
					Channel: lifecycleEventsChannelName,
					Err:     err,
				})
			},
		})
	})
}

// State returns the current lifecycle state.
func (l *LifecycleService) State() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsResumed returns true if the screen is in the resumed state.
func (l *LifecycleService) IsResumed() bool {
	return l.State() == LifecycleStateResumed
}

// AddHandler registers a handler to be called on lifecycle changes.
// Returns a function that removes the handler.
func (l *LifecycleService) AddHandler(handler LifecycleHandler) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers = append(l.handlers, lifecycleEntry{id: id, fn: handler})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.handlers {
			if e.id == id {
				l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
				return
			}
		}
	}
}

// updateState records newState and notifies handlers on a change.
func (l *LifecycleService) updateState(newState LifecycleState) {
	l.mu.Lock()
	if l.state == newState {
		l.mu.Unlock()
		return
	}
	l.state = newState
	handlers := make([]lifecycleEntry, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	for _, h := range handlers {
		h.fn(newState)
	}
}
