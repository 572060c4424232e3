// Package flow drives the permission-acquisition and location-update flow
// of a screen that displays the device's coordinates.
//
// The flow is an explicit state machine (see Step): it computes which of
// the required permissions are missing, requests them, offers a single
// rationale re-prompt after a denial, checks that location services are
// available whenever the screen resumes, and then holds exactly one update
// subscription while the screen is visible. Every failure degrades to "no
// location shown"; nothing is returned to the caller as an error.
package flow

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-drift/locate/pkg/errors"
	"github.com/go-drift/locate/pkg/platform"
)

// DefaultRequestCode tags permission requests and availability dialogs.
const DefaultRequestCode = 1

// DefaultRationaleMessage is shown before re-requesting denied permissions.
const DefaultRationaleMessage = "The location permission is mandatory"

// UnavailableToast is shown when the user cancels the availability error dialog.
const UnavailableToast = "No service is available"

// DefaultPermissions is the permission set of the location screen.
func DefaultPermissions() []platform.PermissionID {
	return []platform.PermissionID{platform.AccessFineLocation, platform.AccessCoarseLocation}
}

// GuardMode selects when the permission guard lets updates start.
type GuardMode int

const (
	// GuardAll requires every permission of the set.
	GuardAll GuardMode = iota
	// GuardAny accepts any single permission of the set (fine OR coarse).
	GuardAny
)

func (g GuardMode) String() string {
	if g == GuardAny {
		return "any"
	}
	return "all"
}

// Permissions checks and requests runtime permissions.
type Permissions interface {
	IsGranted(ctx context.Context, id platform.PermissionID) bool
	Request(ctx context.Context, requestCode int, ids []platform.PermissionID) error
	ShouldShowRationale(ctx context.Context, id platform.PermissionID) bool
}

// Availability checks the host location service.
type Availability interface {
	Check(ctx context.Context) (platform.AvailabilityCode, error)
	ShowErrorDialog(ctx context.Context, code platform.AvailabilityCode, requestCode int) (cancelled bool, err error)
}

// Subscription is a releasable update registration.
type Subscription interface {
	Release(ctx context.Context) error
}

// Locations provides the last known fix and update subscriptions.
type Locations interface {
	LastKnown(ctx context.Context) (*platform.LocationFix, error)
	RequestUpdates(ctx context.Context, req platform.LocationRequest, handler func(platform.LocationFix)) (Subscription, error)
}

// Prompter shows dialogs and toasts.
type Prompter interface {
	Confirm(ctx context.Context, d platform.ConfirmDialog) (accepted bool, err error)
	Toast(ctx context.Context, text string, d platform.ToastDuration) error
}

// Display receives the formatted location text.
type Display interface {
	SetText(ctx context.Context, text string) error
}

// Deps are the host services the flow talks to.
type Deps struct {
	Permissions  Permissions
	Availability Availability
	Locations    Locations
	Prompter     Prompter
	Display      Display
}

// Options configure a Flow. Zero values select the defaults.
type Options struct {
	// Permissions is the required permission set, in request order.
	Permissions []platform.PermissionID
	// Request configures the update subscription.
	Request platform.LocationRequest
	// Guard selects the permission guard used before subscribing.
	Guard GuardMode
	// RationaleMessage is the text of the rationale dialog.
	RationaleMessage string
	// RequestCode tags permission requests.
	RequestCode int
	// Logger receives transition and diagnostic events.
	Logger zerolog.Logger
	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to State, outcome Outcome)
}

// Flow is the permission and location-update state machine of one screen.
// Its methods are meant to be called on the UI thread; a mutex keeps its
// state consistent if they are not.
type Flow struct {
	deps     Deps
	required []platform.PermissionID
	request  platform.LocationRequest
	guard    GuardMode
	message  string
	code     int
	log      zerolog.Logger
	onChange func(from, to State, outcome Outcome)

	mu        sync.Mutex
	state     State
	retried   bool
	visible   bool
	closed    bool
	prompting bool
	sub       Subscription
	rejected  []platform.PermissionID
}

// New creates a Flow in StateStart. The permission set is copied.
func New(deps Deps, opts Options) *Flow {
	required := opts.Permissions
	if len(required) == 0 {
		required = DefaultPermissions()
	}
	req := opts.Request
	if req.IntervalMs <= 0 {
		req = platform.DefaultLocationRequest()
	}
	if req.Priority == 0 {
		req.Priority = platform.PriorityHighAccuracy
	}
	message := opts.RationaleMessage
	if message == "" {
		message = DefaultRationaleMessage
	}
	code := opts.RequestCode
	if code == 0 {
		code = DefaultRequestCode
	}
	return &Flow{
		deps:     deps,
		required: append([]platform.PermissionID(nil), required...),
		request:  req,
		guard:    opts.Guard,
		message:  message,
		code:     code,
		log:      opts.Logger.With().Str("component", "flow").Logger(),
		onChange: opts.OnTransition,
		state:    StateStart,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribed reports whether an update subscription is active.
func (f *Flow) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sub != nil
}

// Rejected returns the denied permissions of the most recent result.
func (f *Flow) Rejected() []platform.PermissionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.PermissionID(nil), f.rejected...)
}

// ComputePending returns the elements of required the process does not
// hold, in input order.
func (f *Flow) ComputePending(ctx context.Context, required []platform.PermissionID) []platform.PermissionID {
	var pending []platform.PermissionID
	for _, id := range required {
		if !f.deps.Permissions.IsGranted(ctx, id) {
			pending = append(pending, id)
		}
	}
	return pending
}

// Start checks the permission set and requests whatever is missing. When
// nothing is missing no request is issued and the flow moves straight to
// StateAllGranted.
func (f *Flow) Start(ctx context.Context) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.state
	}

	pending := f.ComputePending(ctx, f.required)
	if len(pending) == 0 {
		if f.transition(OutcomeNothingPending) && f.visible {
			f.resolveAvailability(ctx)
		}
		return f.state
	}

	f.log.Debug().Strs("pending", permissionStrings(pending)).Msg("requesting permissions")
	if err := f.deps.Permissions.Request(ctx, f.code, pending); err != nil {
		f.report("flow.Start", errors.KindPermission, err)
		f.transition(OutcomeRequestFailed)
		return f.state
	}
	f.transition(OutcomeChecked)
	return f.state
}

// OnPermissionResult applies the user's answer to a permission request.
// requested and granted are parallel slices. Results for other request
// codes are ignored.
func (f *Flow) OnPermissionResult(ctx context.Context, requestCode int, requested []platform.PermissionID, granted []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || requestCode != f.code {
		return
	}
	if f.prompting {
		f.log.Debug().Msg("permission result during dialog ignored")
		return
	}
	if len(requested) != len(granted) {
		f.report("flow.OnPermissionResult", errors.KindPermission, errResultMismatch)
		return
	}

	// A fresh RejectedSet per result.
	var denied []platform.PermissionID
	for i, id := range requested {
		if !granted[i] {
			denied = append(denied, id)
		}
	}
	f.rejected = denied

	if len(denied) == 0 || f.guardSatisfied(ctx) {
		if !f.transition(OutcomeAllGranted) {
			return
		}
		if f.visible {
			f.resolveAvailability(ctx)
		}
		return
	}

	if !f.transition(OutcomeSomeDenied) {
		return
	}
	f.log.Info().Strs("denied", permissionStrings(denied)).Msg("permissions denied")

	if f.retried || !f.deps.Permissions.ShouldShowRationale(ctx, denied[0]) {
		f.transition(OutcomeNoRationale)
		return
	}

	f.transition(OutcomeRationaleShown)
	var accepted bool
	var err error
	f.prompt(func() {
		accepted, err = f.deps.Prompter.Confirm(ctx, platform.ConfirmDialog{
			Message:       f.message,
			PositiveLabel: "Ok",
			NegativeLabel: "Cancel",
		})
	})
	if f.closed || f.state != StateRationalePrompt {
		return
	}
	if err != nil {
		f.report("flow.rationale", errors.KindPlatform, err)
		accepted = false
	}
	if !accepted {
		f.transition(OutcomeRationaleDeclined)
		return
	}

	f.retried = true
	retry := append([]platform.PermissionID(nil), denied...)
	if err := f.deps.Permissions.Request(ctx, f.code, retry); err != nil {
		f.report("flow.retryRequest", errors.KindPermission, err)
		f.transition(OutcomeRequestFailed)
		return
	}
	f.transition(OutcomeRationaleAccepted)
}

// OnResume marks the screen visible and, once permissions are settled,
// checks service availability. A flow that already holds a subscription
// is left alone.
func (f *Flow) OnResume(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.visible = true
	switch f.state {
	case StateAllGranted, StateUnavailable, StateAvailabilityChecked:
		f.resolveAvailability(ctx)
	default:
		f.log.Debug().Stringer("state", f.state).Msg("resume: nothing to do")
	}
}

// OnPause marks the screen hidden and releases the update subscription.
func (f *Flow) OnPause(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	f.release(ctx)
}

// OnAvailabilityResolved reacts to an availability check. On failure the
// host's error dialog is shown and nothing else happens this cycle; on
// success the last known location is displayed and updates begin.
func (f *Flow) OnAvailabilityResolved(ctx context.Context, code platform.AvailabilityCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.applyAvailability(ctx, code)
}

// BeginUpdates establishes the update subscription if none is active. It
// aborts silently when the required permissions are missing at call time.
// It reports whether a subscription is active afterwards.
func (f *Flow) BeginUpdates(ctx context.Context, req platform.LocationRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	return f.beginUpdates(ctx, req)
}

// Close releases the subscription. Later calls on the flow are no-ops.
func (f *Flow) Close(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.release(ctx)
	f.closed = true
}

func (f *Flow) resolveAvailability(ctx context.Context) {
	if f.sub != nil || f.prompting {
		return
	}
	code, err := f.deps.Availability.Check(ctx)
	if err != nil {
		f.report("flow.availability", errors.KindAvailability, err)
		if code.OK() {
			code = platform.AvailabilityInternalError
		}
	}
	f.applyAvailability(ctx, code)
}

func (f *Flow) applyAvailability(ctx context.Context, code platform.AvailabilityCode) {
	if !code.OK() {
		if !f.transition(OutcomeUnavailable) {
			return
		}
		f.log.Warn().Stringer("code", code).Msg("location service unavailable")
		var cancelled bool
		var err error
		f.prompt(func() {
			cancelled, err = f.deps.Availability.ShowErrorDialog(ctx, code, f.code)
		})
		if err != nil {
			f.report("flow.availabilityDialog", errors.KindAvailability, err)
			return
		}
		if cancelled && !f.closed {
			if err := f.deps.Prompter.Toast(ctx, UnavailableToast, platform.ToastShort); err != nil {
				f.report("flow.toast", errors.KindPlatform, err)
			}
		}
		return
	}

	if !f.transition(OutcomeAvailable) {
		return
	}
	f.showLastKnown(ctx)
	f.beginUpdates(ctx, f.request)
}

// prompt runs a blocking dialog with f.mu released so that State, Close
// and other callers are not held up by the user. Callers hold f.mu and
// must re-check f.closed and f.state afterwards.
func (f *Flow) prompt(dialog func()) {
	f.prompting = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.prompting = false
	}()
	dialog()
}

func (f *Flow) showLastKnown(ctx context.Context) {
	if !f.guardSatisfied(ctx) {
		return
	}
	fix, err := f.deps.Locations.LastKnown(ctx)
	if err != nil {
		f.report("flow.lastKnown", errors.KindPlatform, err)
		return
	}
	if fix != nil {
		f.display(ctx, *fix)
	}
}

func (f *Flow) beginUpdates(ctx context.Context, req platform.LocationRequest) bool {
	if f.sub != nil {
		return true
	}
	if f.state != StateAvailabilityChecked {
		f.report("flow.BeginUpdates", errors.KindFlow, stepError(f.state, OutcomeSubscribed))
		return false
	}
	// Permissions may have changed since the initial check; abort quietly.
	if !f.guardSatisfied(ctx) {
		f.log.Debug().Msg("begin updates: permissions missing")
		return false
	}

	sub, err := f.deps.Locations.RequestUpdates(ctx, req, func(fix platform.LocationFix) {
		f.onFix(ctx, fix)
	})
	if err != nil {
		f.report("flow.BeginUpdates", errors.KindPlatform, err)
		return false
	}
	f.sub = sub
	f.transition(OutcomeSubscribed)
	f.log.Info().
		Int64("interval_ms", req.IntervalMs).
		Int64("fastest_interval_ms", req.FastestIntervalMs).
		Stringer("priority", req.Priority).
		Msg("location updates started")
	return true
}

// onFix displays an update. Fixes still in flight after a release are dropped.
func (f *Flow) onFix(ctx context.Context, fix platform.LocationFix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.sub == nil {
		return
	}
	f.display(ctx, fix)
}

func (f *Flow) release(ctx context.Context) {
	if f.sub == nil {
		return
	}
	sub := f.sub
	f.sub = nil
	if err := sub.Release(ctx); err != nil {
		f.report("flow.release", errors.KindPlatform, err)
	}
	f.transition(OutcomeReleased)
	f.log.Info().Msg("location updates stopped")
}

func (f *Flow) guardSatisfied(ctx context.Context) bool {
	for _, id := range f.required {
		granted := f.deps.Permissions.IsGranted(ctx, id)
		if f.guard == GuardAny && granted {
			return true
		}
		if f.guard == GuardAll && !granted {
			return false
		}
	}
	return f.guard == GuardAll
}

func (f *Flow) display(ctx context.Context, fix platform.LocationFix) {
	if err := f.deps.Display.SetText(ctx, FormatFix(fix)); err != nil {
		f.report("flow.display", errors.KindPlatform, err)
	}
}

// transition applies outcome to the current state. Invalid pairs are
// reported and leave the state unchanged.
func (f *Flow) transition(outcome Outcome) bool {
	from := f.state
	to, err := Step(from, outcome)
	if err != nil {
		f.report("flow.transition", errors.KindFlow, err)
		return false
	}
	f.state = to
	f.log.Debug().
		Stringer("from", from).
		Stringer("to", to).
		Stringer("outcome", outcome).
		Msg("transition")
	if f.onChange != nil {
		f.onChange(from, to, outcome)
	}
	return true
}

func (f *Flow) report(op string, kind errors.Kind, err error) {
	errors.Report(&errors.Error{Op: op, Kind: kind, Err: err})
}

func stepError(from State, outcome Outcome) error {
	_, err := Step(from, outcome)
	return err
}

func permissionStrings(ids []platform.PermissionID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
