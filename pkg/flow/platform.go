package flow

import (
	"context"

	"github.com/go-drift/locate/pkg/platform"
)

// LocationViewID is the id of the text view showing the coordinates.
const LocationViewID = "locationTV"

// PlatformDeps wires a Flow to the platform singletons and the given
// text view.
func PlatformDeps(view *platform.TextView) Deps {
	if view == nil {
		view = platform.NewTextView(LocationViewID)
	}
	return Deps{
		Permissions:  platform.Permissions,
		Availability: platform.Availability,
		Locations:    platformLocations{platform.Location},
		Prompter:     platform.Dialogs,
		Display:      view,
	}
}

type platformLocations struct {
	svc *platform.LocationService
}

func (p platformLocations) LastKnown(ctx context.Context) (*platform.LocationFix, error) {
	return p.svc.LastKnown(ctx)
}

func (p platformLocations) RequestUpdates(ctx context.Context, req platform.LocationRequest, handler func(platform.LocationFix)) (Subscription, error) {
	sub, err := p.svc.RequestUpdates(ctx, req, func(fix platform.LocationFix) {
		platform.DispatchOrRun(func() { handler(fix) })
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Bind connects f to the platform's permission results and lifecycle
// events. Callbacks are dispatched to the UI thread. The returned function
// removes both listeners.
func Bind(ctx context.Context, f *Flow) (unbind func()) {
	unsubResults := platform.Permissions.Results().Listen(func(ev platform.PermissionResultEvent) {
		platform.DispatchOrRun(func() {
			f.OnPermissionResult(ctx, ev.RequestCode, ev.Permissions, ev.Granted)
		})
	})
	removeLifecycle := platform.Lifecycle.AddHandler(func(state platform.LifecycleState) {
		platform.DispatchOrRun(func() {
			switch state {
			case platform.LifecycleStateResumed:
				f.OnResume(ctx)
			case platform.LifecycleStatePaused, platform.LifecycleStateDetached:
				f.OnPause(ctx)
			}
		})
	})
	return func() {
		unsubResults()
		removeLifecycle()
	}
}
