package flow

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/locate/pkg/platform"
)

const (
	fine   = platform.AccessFineLocation
	coarse = platform.AccessCoarseLocation
)

func TestComputePending(t *testing.T) {
	extra := platform.PermissionID("android.permission.ACCESS_BACKGROUND_LOCATION")
	tests := []struct {
		name     string
		granted  []platform.PermissionID
		required []platform.PermissionID
		want     []platform.PermissionID
	}{
		{"none granted", nil, []platform.PermissionID{fine, coarse}, []platform.PermissionID{fine, coarse}},
		{"fine granted", []platform.PermissionID{fine}, []platform.PermissionID{fine, coarse}, []platform.PermissionID{coarse}},
		{"coarse granted", []platform.PermissionID{coarse}, []platform.PermissionID{fine, coarse}, []platform.PermissionID{fine}},
		{"all granted", []platform.PermissionID{fine, coarse}, []platform.PermissionID{fine, coarse}, nil},
		{"order kept", []platform.PermissionID{coarse}, []platform.PermissionID{extra, coarse, fine}, []platform.PermissionID{extra, fine}},
		{"empty input", []platform.PermissionID{fine}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Options{}, tt.granted...)
			assert.Equal(t, tt.want, h.flow.ComputePending(context.Background(), tt.required))
			assert.Empty(t, h.perms.requests)
		})
	}
}

func TestStartNothingPendingIssuesNoRequest(t *testing.T) {
	h := newHarness(Options{}, fine, coarse)

	state := h.flow.Start(context.Background())

	assert.Equal(t, StateAllGranted, state)
	assert.Empty(t, h.perms.requests)
}

func TestStartRequestsExactlyPending(t *testing.T) {
	h := newHarness(Options{}, fine)

	state := h.flow.Start(context.Background())

	assert.Equal(t, StatePermissionsChecked, state)
	assert.Equal(t, [][]platform.PermissionID{{coarse}}, h.perms.requests)
}

func TestStartRequestFailureIsUnresolved(t *testing.T) {
	h := newHarness(Options{})
	h.perms.requestErr = stderrors.New("no activity")

	assert.Equal(t, StateUnresolved, h.flow.Start(context.Background()))
}

func TestGrantedThenAvailableSubscribesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.locs.last = &platform.LocationFix{Latitude: 37.4219983, Longitude: -122.084}
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, nil)

	h.flow.Start(ctx)
	h.flow.OnResume(ctx) // permission dialog still up: nothing to do
	assert.Empty(t, h.locs.subs)

	h.perms.grant(fine, coarse)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{true, true})

	require.Equal(t, StateSubscribed, h.flow.State())
	require.Len(t, h.locs.subs, 1)
	assert.Equal(t, platform.DefaultLocationRequest(), h.locs.requests[0])
	assert.Equal(t, []string{"Lat: 37.4219983, Lng: -122.084"}, h.display.texts)

	h.flow.OnResume(ctx)
	h.flow.OnResume(ctx)
	assert.Len(t, h.locs.subs, 1)
	h.avail.AssertNumberOfCalls(t, "Check", 1)

	h.locs.handler(platform.LocationFix{Latitude: 10, Longitude: 20.5})
	assert.Equal(t, "Lat: 10.0, Lng: 20.5", h.display.texts[len(h.display.texts)-1])
}

func TestDeniedWithRationaleRetriesDeniedSubsetOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.perms.rationale[coarse] = true
	h.prompt.On("Confirm", mock.Anything, mock.MatchedBy(func(d platform.ConfirmDialog) bool {
		return d.Message == DefaultRationaleMessage
	})).Return(true, nil)

	h.flow.Start(ctx)
	h.perms.grant(fine)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{true, false})

	assert.Equal(t, StatePermissionsChecked, h.flow.State())
	require.Len(t, h.perms.requests, 2)
	assert.Equal(t, []platform.PermissionID{coarse}, h.perms.requests[1])
	assert.Equal(t, []platform.PermissionID{coarse}, h.flow.Rejected())

	// Denied again: the single rationale prompt is spent.
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{coarse}, []bool{false})

	assert.Equal(t, StateUnresolved, h.flow.State())
	assert.Len(t, h.perms.requests, 2)
	h.prompt.AssertNumberOfCalls(t, "Confirm", 1)
	assert.Empty(t, h.locs.subs)
}

func TestDeniedWithRationaleThenGranted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.perms.rationale[fine] = true
	h.prompt.On("Confirm", mock.Anything, mock.Anything).Return(true, nil)
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, nil)

	h.flow.Start(ctx)
	h.flow.OnResume(ctx)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{false, false})
	require.Equal(t, [][]platform.PermissionID{{fine, coarse}, {fine, coarse}}, h.perms.requests)

	h.perms.grant(fine, coarse)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{true, true})

	assert.Equal(t, StateSubscribed, h.flow.State())
	assert.Equal(t, []Outcome{
		OutcomeChecked,
		OutcomeSomeDenied,
		OutcomeRationaleShown,
		OutcomeRationaleAccepted,
		OutcomeAllGranted,
		OutcomeAvailable,
		OutcomeSubscribed,
	}, h.trail)
}

func TestDeniedWithoutRationaleIsUnresolved(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})

	h.flow.Start(ctx)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{false, false})

	assert.Equal(t, StateUnresolved, h.flow.State())
	assert.Len(t, h.perms.requests, 1)
	h.prompt.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)

	h.flow.OnResume(ctx)
	h.avail.AssertNotCalled(t, "Check", mock.Anything)
}

func TestRationaleDeclinedIsUnresolved(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.perms.rationale[fine] = true
	h.prompt.On("Confirm", mock.Anything, mock.Anything).Return(false, nil)

	h.flow.Start(ctx)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{false, true})

	assert.Equal(t, StateUnresolved, h.flow.State())
	assert.Len(t, h.perms.requests, 1)
}

func TestRationaleDialogErrorCountsAsDeclined(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.perms.rationale[fine] = true
	h.prompt.On("Confirm", mock.Anything, mock.Anything).Return(false, stderrors.New("no window"))

	h.flow.Start(ctx)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine}, []bool{false})

	assert.Equal(t, StateUnresolved, h.flow.State())
}

func TestForeignOrMalformedResultsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.flow.Start(ctx)

	h.flow.OnPermissionResult(ctx, 99, []platform.PermissionID{fine}, []bool{true})
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{true})

	assert.Equal(t, StatePermissionsChecked, h.flow.State())
}

func TestUnavailableShowsDialogAndRecoversOnResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, fine, coarse)
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilityServiceMissing, nil).Once()
	h.avail.On("ShowErrorDialog", mock.Anything, platform.AvailabilityServiceMissing, DefaultRequestCode).Return(true, nil).Once()
	h.prompt.On("Toast", mock.Anything, UnavailableToast, platform.ToastShort).Return(nil).Once()

	h.flow.Start(ctx)
	h.flow.OnResume(ctx)

	assert.Equal(t, StateUnavailable, h.flow.State())
	assert.Empty(t, h.locs.subs)
	h.avail.AssertExpectations(t)
	h.prompt.AssertExpectations(t)

	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, nil).Once()
	h.flow.OnResume(ctx)

	assert.Equal(t, StateSubscribed, h.flow.State())
	assert.Len(t, h.locs.subs, 1)
}

func TestUnavailableDialogNotCancelledShowsNoToast(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, fine, coarse)
	h.avail.On("ShowErrorDialog", mock.Anything, platform.AvailabilityServiceDisabled, DefaultRequestCode).Return(false, nil)

	h.flow.Start(ctx)
	h.flow.OnAvailabilityResolved(ctx, platform.AvailabilityServiceDisabled)

	assert.Equal(t, StateUnavailable, h.flow.State())
	h.prompt.AssertNotCalled(t, "Toast", mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailabilityCheckErrorTreatedAsUnavailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, fine, coarse)
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, stderrors.New("bridge down"))
	h.avail.On("ShowErrorDialog", mock.Anything, platform.AvailabilityInternalError, DefaultRequestCode).Return(false, nil)

	h.flow.Start(ctx)
	h.flow.OnResume(ctx)

	assert.Equal(t, StateUnavailable, h.flow.State())
	assert.Empty(t, h.locs.subs)
}

func TestBeginUpdatesAbortsSilentlyWithoutPermission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, fine, coarse)

	h.flow.Start(ctx)
	h.perms.revoke(coarse)
	h.flow.OnAvailabilityResolved(ctx, platform.AvailabilitySuccess)

	assert.Equal(t, StateAvailabilityChecked, h.flow.State())
	assert.Empty(t, h.locs.subs)
	assert.False(t, h.flow.BeginUpdates(ctx, platform.DefaultLocationRequest()))

	h.perms.grant(coarse)
	assert.True(t, h.flow.BeginUpdates(ctx, platform.DefaultLocationRequest()))
	assert.True(t, h.flow.BeginUpdates(ctx, platform.DefaultLocationRequest()))
	assert.Len(t, h.locs.subs, 1)
}

func TestBeginUpdatesBeforeAvailabilityRefused(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, fine, coarse)
	h.flow.Start(ctx)

	assert.False(t, h.flow.BeginUpdates(ctx, platform.DefaultLocationRequest()))
	assert.Empty(t, h.locs.subs)
	assert.Equal(t, StateAllGranted, h.flow.State())
}

func TestPauseReleasesAndResumeReacquires(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, fine, coarse)
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, nil)

	h.flow.Start(ctx)
	h.flow.OnResume(ctx)
	require.True(t, h.flow.Subscribed())

	h.flow.OnPause(ctx)
	assert.False(t, h.flow.Subscribed())
	assert.Equal(t, StateAllGranted, h.flow.State())
	assert.Equal(t, 0, h.locs.active())

	h.flow.OnResume(ctx)
	assert.Equal(t, StateSubscribed, h.flow.State())
	assert.Len(t, h.locs.subs, 2)
	assert.Equal(t, 1, h.locs.active())
}

func TestGrantedWhileHiddenWaitsForResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, nil)

	h.flow.Start(ctx)
	h.perms.grant(fine, coarse)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{true, true})
	assert.Equal(t, StateAllGranted, h.flow.State())
	h.avail.AssertNotCalled(t, "Check", mock.Anything)

	h.flow.OnResume(ctx)
	assert.Equal(t, StateSubscribed, h.flow.State())
}

func TestGuardAnyAcceptsCoarseOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{Guard: GuardAny})
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, nil)

	h.flow.Start(ctx)
	h.flow.OnResume(ctx)
	h.perms.grant(coarse)
	h.flow.OnPermissionResult(ctx, DefaultRequestCode, []platform.PermissionID{fine, coarse}, []bool{false, true})

	assert.Equal(t, StateSubscribed, h.flow.State())
	assert.Equal(t, []platform.PermissionID{fine}, h.flow.Rejected())
	h.prompt.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestGuardAllRejectsCoarseOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, coarse)
	h.flow.Start(ctx)
	h.flow.OnAvailabilityResolved(ctx, platform.AvailabilitySuccess)
	assert.Equal(t, StatePermissionsChecked, h.flow.State())
	assert.Empty(t, h.locs.subs)
}

func TestCloseReleasesAndStops(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, fine, coarse)
	h.avail.On("Check", mock.Anything).Return(platform.AvailabilitySuccess, nil)

	h.flow.Start(ctx)
	h.flow.OnResume(ctx)
	h.flow.Close(ctx)
	h.flow.Close(ctx)

	require.Len(t, h.locs.subs, 1)
	assert.Equal(t, 1, h.locs.subs[0].released)
	h.locs.handler(platform.LocationFix{Latitude: 1, Longitude: 2})
	assert.Empty(t, h.display.texts)
	h.flow.OnResume(ctx)
	assert.Len(t, h.locs.subs, 1)
	assert.False(t, h.flow.BeginUpdates(ctx, platform.DefaultLocationRequest()))
}

func TestNewCopiesPermissionSetAndDefaults(t *testing.T) {
	set := []platform.PermissionID{coarse}
	h := newHarness(Options{Permissions: set, RequestCode: 5})
	set[0] = fine

	h.flow.Start(context.Background())
	assert.Equal(t, [][]platform.PermissionID{{coarse}}, h.perms.requests)

	h.flow.OnPermissionResult(context.Background(), DefaultRequestCode, []platform.PermissionID{coarse}, []bool{true})
	assert.Equal(t, StatePermissionsChecked, h.flow.State())
	h.flow.OnPermissionResult(context.Background(), 5, []platform.PermissionID{coarse}, []bool{true})
	assert.Equal(t, StateAllGranted, h.flow.State())
}
