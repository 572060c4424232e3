package host

import (
	"context"
	"fmt"
	"time"

	"github.com/go-drift/locate/pkg/platform"
)

// lastKnownTimeout bounds the provider call that seeds getLastLocation.
const lastKnownTimeout = 2 * time.Second

func (h *Host) handlePermissions(method string, a args) (any, error) {
	switch method {
	case "check":
		id := platform.PermissionID(a.str("permission"))
		return map[string]any{"status": string(h.perms.status(id))}, nil
	case "shouldShowRationale":
		id := platform.PermissionID(a.str("permission"))
		return map[string]any{"shouldShow": h.perms.shouldShowRationale(id)}, nil
	case "request":
		names, err := a.strings("permissions")
		if err != nil || len(names) == 0 {
			return nil, platform.ErrInvalidArguments
		}
		ids := make([]platform.PermissionID, len(names))
		for i, n := range names {
			ids[i] = platform.PermissionID(n)
		}
		code := int(a.int64("requestCode"))
		h.requests.Add(1)
		go h.runPermissionRequest(code, ids)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s.%s", platform.ErrMethodNotFound, PermissionsChannel, method)
	}
}

// runPermissionRequest asks about each permission that still needs a
// dialog and then emits the result. The screen is paused while dialogs
// are up and resumed after the result is delivered.
func (h *Host) runPermissionRequest(code int, ids []platform.PermissionID) {
	defer h.requests.Done()
	h.reqMu.Lock()
	defer h.reqMu.Unlock()

	prompted := false
	grants := make([]int, len(ids))
	for i, id := range ids {
		if h.perms.needsPrompt(id) {
			if !prompted {
				prompted = true
				h.SetLifecycle(platform.LifecycleStatePaused)
			}
			if err := h.promptPermission(id); err != nil {
				h.log.Debug().Err(err).Msg("permission prompt abandoned")
				return
			}
		}
		grants[i] = platform.GrantCodeDenied
		if h.perms.isGranted(id) {
			grants[i] = platform.GrantCodeGranted
		}
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	h.emit(PermissionResults, map[string]any{
		"requestCode":  code,
		"permissions":  names,
		"grantResults": grants,
	})
	if prompted {
		h.SetLifecycle(platform.LifecycleStateResumed)
	}
}

func (h *Host) promptPermission(id platform.PermissionID) error {
	choices := []string{"allow", "deny"}
	if h.perms.status(id) == platform.PermissionDenied {
		choices = append(choices, "never")
	}
	answer, err := h.term.Choose(h.prompts, permissionPromptTitle+"\n"+permissionLabel(id), choices...)
	if err != nil {
		return err
	}
	switch answer {
	case "allow":
		h.perms.set(id, granted)
	case "never":
		h.perms.set(id, deniedForever)
	default:
		h.perms.set(id, denied)
	}
	return nil
}

func permissionLabel(id platform.PermissionID) string {
	switch id {
	case platform.AccessFineLocation:
		return "precise location (" + string(id) + ")"
	case platform.AccessCoarseLocation:
		return "approximate location (" + string(id) + ")"
	default:
		return string(id)
	}
}

func (h *Host) locationPermitted() bool {
	return h.perms.isGranted(platform.AccessFineLocation) || h.perms.isGranted(platform.AccessCoarseLocation)
}

func (h *Host) handleLocation(method string, a args) (any, error) {
	if !h.locationPermitted() && method != "removeLocationUpdates" {
		return nil, platform.NewChannelError("permission_denied", "location permission not granted")
	}
	switch method {
	case "getLastLocation":
		fix := h.updates.lastKnown()
		if fix == nil {
			ctx, cancel := context.WithTimeout(h.ctx, lastKnownTimeout)
			defer cancel()
			f, err := h.updates.provider.Locate(ctx)
			if err != nil {
				h.log.Debug().Err(err).Msg("no last known location")
				return nil, nil
			}
			h.updates.setLast(f)
			fix = &f
		}
		return platform.FixPayload(*fix), nil
	case "requestLocationUpdates":
		id := a.str("id")
		if id == "" {
			return nil, platform.ErrInvalidArguments
		}
		h.updates.start(h.ctx, id, platform.LocationRequest{
			IntervalMs:        a.int64("intervalMs"),
			FastestIntervalMs: a.int64("fastestIntervalMs"),
			Priority:          platform.Priority(a.int64("priority")),
		})
		return nil, nil
	case "removeLocationUpdates":
		h.updates.stop(a.str("id"))
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s.%s", platform.ErrMethodNotFound, LocationChannel, method)
	}
}

func (h *Host) handleAvailability(method string, a args) (any, error) {
	switch method {
	case "isAvailable":
		h.mu.Lock()
		code := h.availability
		h.mu.Unlock()
		return map[string]any{"code": int(code)}, nil
	case "showErrorDialog":
		code := platform.AvailabilityCode(a.int64("code"))
		message := "Location services are unavailable: " + code.String()
		choices := []string{"cancel"}
		if platform.IsUserResolvable(code) {
			choices = []string{"resolve", "cancel"}
		}
		answer, err := h.term.Choose(h.prompts, message, choices...)
		if err != nil {
			return nil, err
		}
		if answer == "resolve" {
			h.mu.Lock()
			h.availability = platform.AvailabilitySuccess
			h.mu.Unlock()
			return map[string]any{"cancelled": false}, nil
		}
		return map[string]any{"cancelled": true}, nil
	default:
		return nil, fmt.Errorf("%w: %s.%s", platform.ErrMethodNotFound, AvailabilityChannel, method)
	}
}

func (h *Host) handleDialogs(method string, a args) (any, error) {
	switch method {
	case "confirm":
		positive, negative := a.str("positive"), a.str("negative")
		if positive == "" || negative == "" {
			return nil, platform.ErrInvalidArguments
		}
		answer, err := h.term.Choose(h.prompts, a.str("message"), positive, negative)
		if err != nil {
			return nil, err
		}
		return map[string]any{"accepted": answer == positive}, nil
	case "toast":
		h.term.ShowToast(a.str("text"))
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s.%s", platform.ErrMethodNotFound, DialogsChannel, method)
	}
}

func (h *Host) handleView(method string, a args) (any, error) {
	if method != "setText" {
		return nil, fmt.Errorf("%w: %s.%s", platform.ErrMethodNotFound, ViewChannel, method)
	}
	id, text := a.str("id"), a.str("text")
	h.mu.Lock()
	h.views[id] = text
	h.mu.Unlock()
	h.term.ShowView(id, text)
	return nil, nil
}
