package host

import (
	"context"
	"sync"

	"github.com/go-drift/locate/pkg/errors"
)

// Loop runs callbacks one at a time on a single goroutine, standing in
// for a UI thread. Post is safe to call from any goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop returns an idle loop. Callbacks posted before Run are kept.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post schedules callback to run on the loop.
func (l *Loop) Post(callback func()) {
	if callback == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, callback)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes posted callbacks in order until ctx ends. A panicking
// callback is reported and the loop keeps going.
func (l *Loop) Run(ctx context.Context) {
	for {
		for _, cb := range l.drain() {
			l.run(cb)
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Sync posts callback and waits for it to finish, or for ctx to end.
func (l *Loop) Sync(ctx context.Context, callback func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		callback()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	callbacks := l.queue
	l.queue = nil
	l.mu.Unlock()
	return callbacks
}

func (l *Loop) run(cb func()) {
	defer errors.Recover("host.loop")
	cb()
}
