package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/go-drift/locate/pkg/errors"
)

// PermissionID identifies a runtime permission on the host.
type PermissionID string

// Location permissions.
const (
	AccessFineLocation   PermissionID = "android.permission.ACCESS_FINE_LOCATION"
	AccessCoarseLocation PermissionID = "android.permission.ACCESS_COARSE_LOCATION"
)

// PermissionResult represents the status of a permission.
type PermissionResult string

// Permission status constants.
const (
	// PermissionGranted indicates access has been granted.
	PermissionGranted PermissionResult = "granted"

	// PermissionDenied indicates the user denied the permission. The app may request again.
	PermissionDenied PermissionResult = "denied"

	// PermissionPermanentlyDenied indicates the user denied with "don't ask again".
	// Further requests are answered with a denial without showing a dialog.
	PermissionPermanentlyDenied PermissionResult = "permanently_denied"

	// PermissionNotDetermined indicates the user has not yet been asked.
	PermissionNotDetermined PermissionResult = "not_determined"

	// PermissionResultUnknown indicates the status could not be determined.
	PermissionResultUnknown PermissionResult = "unknown"
)

// Grant codes used in PermissionResultEvent payloads.
const (
	GrantCodeGranted = 0
	GrantCodeDenied  = -1
)

// DefaultPermissionTimeout bounds RequestAndWait when ctx has no deadline.
const DefaultPermissionTimeout = 30 * time.Second

const (
	permissionsChannelName       = "locate/permissions"
	permissionResultsChannelName = "locate/permissions/results"
)

// PermissionResultEvent is the host's answer to one Request call.
// Permissions and Granted are parallel slices in request order.
type PermissionResultEvent struct {
	RequestCode int
	Permissions []PermissionID
	Granted     []bool
}

// PermissionService checks and requests runtime permissions.
type PermissionService struct {
	channel *MethodChannel
	results *Stream[PermissionResultEvent]
}

// Permissions is the singleton permission service.
var Permissions = &PermissionService{
	channel: NewMethodChannel(permissionsChannelName),
	results: NewStream(NewEventChannel(permissionResultsChannelName), parsePermissionResultEvent),
}

// Status returns the current status of the permission.
func (p *PermissionService) Status(ctx context.Context, id PermissionID) (PermissionResult, error) {
	result, err := p.channel.Invoke("check", map[string]any{
		"permission": string(id),
	})
	if err != nil {
		return PermissionResultUnknown, err
	}
	if m := parseMap(result); m != nil {
		if status := parseString(m["status"]); status != "" {
			return PermissionResult(status), nil
		}
	}
	return PermissionResultUnknown, nil
}

// IsGranted reports whether the permission is currently granted.
// Best-effort: any error reads as not granted.
func (p *PermissionService) IsGranted(ctx context.Context, id PermissionID) bool {
	status, err := p.Status(ctx, id)
	if err != nil {
		return false
	}
	return status == PermissionGranted
}

// Request asks the host to show the permission dialog for ids. It returns
// once the host has accepted the request; the user's answer arrives later
// on Results with the same requestCode.
func (p *PermissionService) Request(ctx context.Context, requestCode int, ids []PermissionID) error {
	if len(ids) == 0 {
		return ErrInvalidArguments
	}
	perms := make([]string, len(ids))
	for i, id := range ids {
		perms[i] = string(id)
	}
	_, err := p.channel.Invoke("request", map[string]any{
		"requestCode": requestCode,
		"permissions": perms,
	})
	return err
}

// RequestAndWait issues Request and blocks until the matching result
// arrives, ctx ends, or DefaultPermissionTimeout passes.
func (p *PermissionService) RequestAndWait(ctx context.Context, requestCode int, ids []PermissionID) (PermissionResultEvent, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPermissionTimeout)
		defer cancel()
	}

	// Subscribe before triggering the request so the result cannot be missed.
	resultChan := make(chan PermissionResultEvent, 1)
	unsubscribe := p.results.Listen(func(ev PermissionResultEvent) {
		if ev.RequestCode != requestCode {
			return
		}
		select {
		case resultChan <- ev:
		default:
		}
	})
	defer unsubscribe()

	if err := p.Request(ctx, requestCode, ids); err != nil {
		return PermissionResultEvent{}, err
	}

	select {
	case ev := <-resultChan:
		return ev, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return PermissionResultEvent{}, ErrTimeout
		}
		return PermissionResultEvent{}, ErrCanceled
	}
}

// ShouldShowRationale reports whether the host wants an explanation shown
// before requesting id again. Best-effort: errors read as false.
func (p *PermissionService) ShouldShowRationale(ctx context.Context, id PermissionID) bool {
	result, err := p.channel.Invoke("shouldShowRationale", map[string]any{
		"permission": string(id),
	})
	if err != nil {
		errors.Report(&errors.Error{
			Op:      "permissions.shouldShowRationale",
			Kind:    errors.KindPlatform,
			Channel: permissionsChannelName,
			Err:     err,
		})
		return false
	}
	if m := parseMap(result); m != nil {
		return parseBool(m["shouldShow"])
	}
	return false
}

// Results returns the stream of permission request results.
func (p *PermissionService) Results() *Stream[PermissionResultEvent] {
	return p.results
}

func parsePermissionResultEvent(data any) (PermissionResultEvent, error) {
	m := parseMap(data)
	if m == nil {
		return PermissionResultEvent{}, &errors.ParseError{
			Channel:  permissionResultsChannelName,
			DataType: "PermissionResultEvent",
			Got:      data,
		}
	}
	code, _ := toInt64(m["requestCode"])
	perms, ok := parseList(m["permissions"])
	if !ok {
		return PermissionResultEvent{}, fmt.Errorf("permissions: expected list, got %T", m["permissions"])
	}
	grants, ok := parseList(m["grantResults"])
	if !ok {
		return PermissionResultEvent{}, fmt.Errorf("grantResults: expected list, got %T", m["grantResults"])
	}
	ev := PermissionResultEvent{
		RequestCode: int(code),
		Permissions: make([]PermissionID, len(perms)),
		Granted:     make([]bool, len(grants)),
	}
	for i, v := range perms {
		ev.Permissions[i] = PermissionID(parseString(v))
	}
	for i, v := range grants {
		n, ok := toInt64(v)
		ev.Granted[i] = ok && n == GrantCodeGranted
	}
	return ev, nil
}
