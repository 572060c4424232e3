package host

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/locate/pkg/platform"
	"github.com/go-drift/locate/pkg/sources"
)

// poller feeds fixes from a provider to one update subscription.
type poller struct {
	id       string
	interval time.Duration
	fastest  time.Duration
	provider sources.Provider
	emit     func(id string, fix platform.LocationFix)
	log      zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// run polls immediately and then every interval. A fix that arrives
// sooner than the fastest interval after the previous emitted fix is
// dropped.
func (p *poller) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last time.Time
	for {
		fix, err := p.provider.Locate(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			p.log.Warn().Err(err).Str("provider", p.provider.Name()).Msg("locate failed")
		case !last.IsZero() && time.Since(last) < p.fastest:
			p.log.Debug().Str("id", p.id).Msg("fix dropped: faster than fastest interval")
		default:
			last = time.Now()
			p.emit(p.id, fix)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// updateManager tracks the active subscriptions and the last fix.
type updateManager struct {
	provider sources.Provider
	emit     func(id string, fix platform.LocationFix)
	log      zerolog.Logger

	mu      sync.Mutex
	pollers map[string]*poller
	last    *platform.LocationFix
}

func newUpdateManager(provider sources.Provider, emit func(string, platform.LocationFix), log zerolog.Logger) *updateManager {
	m := &updateManager{
		provider: provider,
		log:      log,
		pollers:  make(map[string]*poller),
	}
	m.emit = func(id string, fix platform.LocationFix) {
		m.mu.Lock()
		f := fix
		m.last = &f
		m.mu.Unlock()
		emit(id, fix)
	}
	return m
}

func (m *updateManager) lastKnown() *platform.LocationFix {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	f := *m.last
	return &f
}

func (m *updateManager) setLast(fix platform.LocationFix) {
	m.mu.Lock()
	m.last = &fix
	m.mu.Unlock()
}

func (m *updateManager) start(ctx context.Context, id string, req platform.LocationRequest) {
	interval := time.Duration(req.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Duration(platform.DefaultLocationRequest().IntervalMs) * time.Millisecond
	}
	fastest := time.Duration(req.FastestIntervalMs) * time.Millisecond
	if fastest > interval {
		fastest = interval
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &poller{
		id:       id,
		interval: interval,
		fastest:  fastest,
		provider: m.provider,
		emit:     m.emit,
		log:      m.log,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if old, ok := m.pollers[id]; ok {
		old.cancel()
	}
	m.pollers[id] = p
	m.mu.Unlock()

	go p.run(ctx)
	m.log.Debug().Str("id", id).Dur("interval", interval).Dur("fastest", fastest).Msg("updates started")
}

// stop cancels subscription id. The poller may still deliver a fix it
// already had in hand. It reports whether the subscription existed.
func (m *updateManager) stop(id string) bool {
	m.mu.Lock()
	p, ok := m.pollers[id]
	delete(m.pollers, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	p.cancel()
	m.log.Debug().Str("id", id).Msg("updates stopped")
	return true
}

func (m *updateManager) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pollers)
}

// stopAll cancels every poller and waits for them to exit.
func (m *updateManager) stopAll() {
	m.mu.Lock()
	pollers := m.pollers
	m.pollers = make(map[string]*poller)
	m.mu.Unlock()
	for _, p := range pollers {
		p.cancel()
		<-p.done
	}
}
