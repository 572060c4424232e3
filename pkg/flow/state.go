package flow

import (
	"errors"
	"fmt"
)

// State is a node of the permission and location-update state machine.
type State int

const (
	// StateStart is the state before the permission set has been checked.
	StateStart State = iota
	// StatePermissionsChecked means a permission request is outstanding.
	StatePermissionsChecked
	// StateAllGranted means the required permissions are held.
	StateAllGranted
	// StateSomeDenied means the last request came back with denials.
	StateSomeDenied
	// StateRationalePrompt means the rationale dialog is on screen.
	StateRationalePrompt
	// StateUnresolved is terminal: permissions stay missing and no
	// location is shown.
	StateUnresolved
	// StateAvailabilityChecked means the location service reported success.
	StateAvailabilityChecked
	// StateUnavailable means the location service check failed. The next
	// resume checks again.
	StateUnavailable
	// StateSubscribed means an update subscription is active.
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePermissionsChecked:
		return "permissions_checked"
	case StateAllGranted:
		return "all_granted"
	case StateSomeDenied:
		return "some_denied"
	case StateRationalePrompt:
		return "rationale_prompt"
	case StateUnresolved:
		return "unresolved"
	case StateAvailabilityChecked:
		return "availability_checked"
	case StateUnavailable:
		return "unavailable"
	case StateSubscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateUnresolved
}

// Outcome is the result that drives one transition.
type Outcome int

const (
	// OutcomeNothingPending: every required permission was already granted.
	OutcomeNothingPending Outcome = iota
	// OutcomeChecked: a request for the pending permissions was issued.
	OutcomeChecked
	// OutcomeRequestFailed: the host refused to show the request.
	OutcomeRequestFailed
	// OutcomeAllGranted: the request result satisfies the guard.
	OutcomeAllGranted
	// OutcomeSomeDenied: the request result left permissions denied.
	OutcomeSomeDenied
	// OutcomeRationaleShown: the rationale dialog was presented.
	OutcomeRationaleShown
	// OutcomeNoRationale: the host wants no rationale, or the single
	// rationale prompt was already used.
	OutcomeNoRationale
	// OutcomeRationaleAccepted: the user accepted; the denied subset is requested again.
	OutcomeRationaleAccepted
	// OutcomeRationaleDeclined: the user cancelled the rationale dialog.
	OutcomeRationaleDeclined
	// OutcomeAvailable: the availability check succeeded.
	OutcomeAvailable
	// OutcomeUnavailable: the availability check failed.
	OutcomeUnavailable
	// OutcomeSubscribed: the update subscription was established.
	OutcomeSubscribed
	// OutcomeReleased: the update subscription was released.
	OutcomeReleased
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNothingPending:
		return "nothing_pending"
	case OutcomeChecked:
		return "checked"
	case OutcomeRequestFailed:
		return "request_failed"
	case OutcomeAllGranted:
		return "all_granted"
	case OutcomeSomeDenied:
		return "some_denied"
	case OutcomeRationaleShown:
		return "rationale_shown"
	case OutcomeNoRationale:
		return "no_rationale"
	case OutcomeRationaleAccepted:
		return "rationale_accepted"
	case OutcomeRationaleDeclined:
		return "rationale_declined"
	case OutcomeAvailable:
		return "available"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeSubscribed:
		return "subscribed"
	case OutcomeReleased:
		return "released"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrInvalidTransition is returned by Step for a (state, outcome) pair
// that has no entry in the transition table.
var ErrInvalidTransition = errors.New("flow: invalid transition")

var errResultMismatch = errors.New("flow: permission and grant result counts differ")

type transitionKey struct {
	from    State
	outcome Outcome
}

var transitions = map[transitionKey]State{
	{StateStart, OutcomeNothingPending}: StateAllGranted,
	{StateStart, OutcomeChecked}:        StatePermissionsChecked,
	{StateStart, OutcomeRequestFailed}:  StateUnresolved,

	{StatePermissionsChecked, OutcomeAllGranted}: StateAllGranted,
	{StatePermissionsChecked, OutcomeSomeDenied}: StateSomeDenied,

	{StateSomeDenied, OutcomeRationaleShown}: StateRationalePrompt,
	{StateSomeDenied, OutcomeNoRationale}:    StateUnresolved,

	{StateRationalePrompt, OutcomeRationaleAccepted}: StatePermissionsChecked,
	{StateRationalePrompt, OutcomeRationaleDeclined}: StateUnresolved,
	{StateRationalePrompt, OutcomeRequestFailed}:     StateUnresolved,

	{StateAllGranted, OutcomeAvailable}:   StateAvailabilityChecked,
	{StateAllGranted, OutcomeUnavailable}: StateUnavailable,

	{StateUnavailable, OutcomeAvailable}:   StateAvailabilityChecked,
	{StateUnavailable, OutcomeUnavailable}: StateUnavailable,

	{StateAvailabilityChecked, OutcomeSubscribed}:  StateSubscribed,
	{StateAvailabilityChecked, OutcomeAvailable}:   StateAvailabilityChecked,
	{StateAvailabilityChecked, OutcomeUnavailable}: StateUnavailable,

	{StateSubscribed, OutcomeReleased}: StateAllGranted,
}

// Step returns the state reached from 'from' on outcome.
func Step(from State, outcome Outcome) (State, error) {
	to, ok := transitions[transitionKey{from, outcome}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, outcome, from)
	}
	return to, nil
}
