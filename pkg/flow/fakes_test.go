package flow

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/go-drift/locate/pkg/platform"
)

type fakePermissions struct {
	mu         sync.Mutex
	granted    map[platform.PermissionID]bool
	rationale  map[platform.PermissionID]bool
	requests   [][]platform.PermissionID
	requestErr error
}

func newFakePermissions(granted ...platform.PermissionID) *fakePermissions {
	p := &fakePermissions{
		granted:   make(map[platform.PermissionID]bool),
		rationale: make(map[platform.PermissionID]bool),
	}
	for _, id := range granted {
		p.granted[id] = true
	}
	return p
}

func (p *fakePermissions) IsGranted(_ context.Context, id platform.PermissionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted[id]
}

func (p *fakePermissions) Request(_ context.Context, _ int, ids []platform.PermissionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return p.requestErr
	}
	p.requests = append(p.requests, append([]platform.PermissionID(nil), ids...))
	return nil
}

func (p *fakePermissions) ShouldShowRationale(_ context.Context, id platform.PermissionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rationale[id]
}

func (p *fakePermissions) grant(ids ...platform.PermissionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.granted[id] = true
	}
}

func (p *fakePermissions) revoke(ids ...platform.PermissionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.granted, id)
	}
}

type mockAvailability struct {
	mock.Mock
}

func (m *mockAvailability) Check(ctx context.Context) (platform.AvailabilityCode, error) {
	args := m.Called(ctx)
	return args.Get(0).(platform.AvailabilityCode), args.Error(1)
}

func (m *mockAvailability) ShowErrorDialog(ctx context.Context, code platform.AvailabilityCode, requestCode int) (bool, error) {
	args := m.Called(ctx, code, requestCode)
	return args.Bool(0), args.Error(1)
}

type mockPrompter struct {
	mock.Mock
}

func (m *mockPrompter) Confirm(ctx context.Context, d platform.ConfirmDialog) (bool, error) {
	args := m.Called(ctx, d)
	return args.Bool(0), args.Error(1)
}

func (m *mockPrompter) Toast(ctx context.Context, text string, d platform.ToastDuration) error {
	args := m.Called(ctx, text, d)
	return args.Error(0)
}

type fakeSub struct {
	released int
}

func (s *fakeSub) Release(context.Context) error {
	s.released++
	return nil
}

type fakeLocations struct {
	last     *platform.LocationFix
	subs     []*fakeSub
	requests []platform.LocationRequest
	handler  func(platform.LocationFix)
}

func (l *fakeLocations) LastKnown(context.Context) (*platform.LocationFix, error) {
	return l.last, nil
}

func (l *fakeLocations) RequestUpdates(_ context.Context, req platform.LocationRequest, handler func(platform.LocationFix)) (Subscription, error) {
	sub := &fakeSub{}
	l.subs = append(l.subs, sub)
	l.requests = append(l.requests, req)
	l.handler = handler
	return sub, nil
}

func (l *fakeLocations) active() int {
	n := 0
	for _, s := range l.subs {
		if s.released == 0 {
			n++
		}
	}
	return n
}

type recordingDisplay struct {
	texts []string
}

func (d *recordingDisplay) SetText(_ context.Context, text string) error {
	d.texts = append(d.texts, text)
	return nil
}

type harness struct {
	perms   *fakePermissions
	avail   *mockAvailability
	locs    *fakeLocations
	prompt  *mockPrompter
	display *recordingDisplay
	flow    *Flow
	trail   []Outcome
}

func newHarness(opts Options, granted ...platform.PermissionID) *harness {
	h := &harness{
		perms:   newFakePermissions(granted...),
		avail:   &mockAvailability{},
		locs:    &fakeLocations{},
		prompt:  &mockPrompter{},
		display: &recordingDisplay{},
	}
	opts.OnTransition = func(_, _ State, o Outcome) { h.trail = append(h.trail, o) }
	h.flow = New(Deps{
		Permissions:  h.perms,
		Availability: h.avail,
		Locations:    h.locs,
		Prompter:     h.prompt,
		Display:      h.display,
	}, opts)
	return h
}
