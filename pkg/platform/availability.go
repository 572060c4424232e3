package platform

import (
	"context"
	"fmt"
)

// AvailabilityCode is the host's answer to a location-services
// availability check. Values mirror the host's connection result codes.
type AvailabilityCode int

const (
	AvailabilitySuccess                      AvailabilityCode = 0
	AvailabilityServiceMissing               AvailabilityCode = 1
	AvailabilityServiceVersionUpdateRequired AvailabilityCode = 2
	AvailabilityServiceDisabled              AvailabilityCode = 3
	AvailabilityNetworkError                 AvailabilityCode = 7
	AvailabilityInternalError                AvailabilityCode = 8
	AvailabilityServiceInvalid               AvailabilityCode = 9
	AvailabilityAPIUnavailable               AvailabilityCode = 16
	AvailabilityServiceUpdating              AvailabilityCode = 18
)

func (c AvailabilityCode) String() string {
	switch c {
	case AvailabilitySuccess:
		return "SUCCESS"
	case AvailabilityServiceMissing:
		return "SERVICE_MISSING"
	case AvailabilityServiceVersionUpdateRequired:
		return "SERVICE_VERSION_UPDATE_REQUIRED"
	case AvailabilityServiceDisabled:
		return "SERVICE_DISABLED"
	case AvailabilityNetworkError:
		return "NETWORK_ERROR"
	case AvailabilityInternalError:
		return "INTERNAL_ERROR"
	case AvailabilityServiceInvalid:
		return "SERVICE_INVALID"
	case AvailabilityAPIUnavailable:
		return "API_UNAVAILABLE"
	case AvailabilityServiceUpdating:
		return "SERVICE_UPDATING"
	default:
		return fmt.Sprintf("UNKNOWN_ERROR_CODE(%d)", int(c))
	}
}

// OK reports whether the code means the service can be used.
func (c AvailabilityCode) OK() bool {
	return c == AvailabilitySuccess
}

// IsUserResolvable reports whether the error dialog for code offers the
// user a way to fix it (install, update or enable the service).
func IsUserResolvable(code AvailabilityCode) bool {
	switch code {
	case AvailabilityServiceMissing,
		AvailabilityServiceVersionUpdateRequired,
		AvailabilityServiceDisabled,
		AvailabilityServiceInvalid,
		AvailabilityServiceUpdating:
		return true
	default:
		return false
	}
}

const availabilityChannelName = "locate/availability"

// AvailabilityService checks whether the host's location services can be used.
type AvailabilityService struct {
	channel *MethodChannel
}

// Availability is the singleton availability service.
var Availability = &AvailabilityService{
	channel: NewMethodChannel(availabilityChannelName),
}

// Check returns the current availability code.
func (a *AvailabilityService) Check(ctx context.Context) (AvailabilityCode, error) {
	result, err := a.channel.Invoke("isAvailable", nil)
	if err != nil {
		return AvailabilityInternalError, err
	}
	m := parseMap(result)
	if m == nil {
		return AvailabilityInternalError, fmt.Errorf("availability: expected map, got %T", result)
	}
	code, ok := toInt64(m["code"])
	if !ok {
		return AvailabilityInternalError, fmt.Errorf("availability: missing code")
	}
	return AvailabilityCode(code), nil
}

// ShowErrorDialog asks the host to show its error dialog for code and
// blocks until the dialog is dismissed. cancelled is true when the user
// backed out instead of following the resolution.
func (a *AvailabilityService) ShowErrorDialog(ctx context.Context, code AvailabilityCode, requestCode int) (cancelled bool, err error) {
	result, err := a.channel.Invoke("showErrorDialog", map[string]any{
		"code":        int(code),
		"requestCode": requestCode,
	})
	if err != nil {
		return false, err
	}
	if m := parseMap(result); m != nil {
		return parseBool(m["cancelled"]), nil
	}
	return false, nil
}
