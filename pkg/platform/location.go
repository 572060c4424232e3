package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocationFix is a single position reported by the host.
type LocationFix struct {
	// Latitude is the latitude in degrees.
	Latitude float64
	// Longitude is the longitude in degrees.
	Longitude float64
	// Accuracy is the estimated horizontal accuracy in meters.
	Accuracy float64
	// Altitude is the altitude in meters.
	Altitude float64
	// Timestamp is when the reading was taken.
	Timestamp time.Time
	// Provider names the source that produced the fix.
	Provider string
}

// Priority trades accuracy against power for location updates.
// Values match the host's request priorities.
type Priority int

const (
	PriorityHighAccuracy Priority = 100
	PriorityBalanced     Priority = 102
	PriorityLowPower     Priority = 104
	PriorityPassive      Priority = 105
)

func (p Priority) String() string {
	switch p {
	case PriorityHighAccuracy:
		return "high_accuracy"
	case PriorityBalanced:
		return "balanced"
	case PriorityLowPower:
		return "low_power"
	case PriorityPassive:
		return "passive"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority maps a configuration name to a Priority.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "", "high_accuracy":
		return PriorityHighAccuracy, nil
	case "balanced":
		return PriorityBalanced, nil
	case "low_power":
		return PriorityLowPower, nil
	case "passive":
		return PriorityPassive, nil
	default:
		return 0, fmt.Errorf("unknown location priority %q", name)
	}
}

// LocationRequest configures an update subscription.
type LocationRequest struct {
	// IntervalMs is the desired update interval in milliseconds.
	IntervalMs int64
	// FastestIntervalMs is the fastest rate at which updates are accepted.
	FastestIntervalMs int64
	// Priority selects the accuracy/power trade-off.
	Priority Priority
}

// DefaultLocationRequest returns a 5s/3s high-accuracy request.
func DefaultLocationRequest() LocationRequest {
	return LocationRequest{
		IntervalMs:        5000,
		FastestIntervalMs: 3000,
		Priority:          PriorityHighAccuracy,
	}
}

func (r LocationRequest) toArgs(id string) map[string]any {
	return map[string]any{
		"id":                id,
		"intervalMs":        r.IntervalMs,
		"fastestIntervalMs": r.FastestIntervalMs,
		"priority":          int(r.Priority),
	}
}

const (
	locationChannelName        = "locate/location"
	locationUpdatesChannelName = "locate/location/updates"
)

// LocationService provides last known position and update subscriptions.
type LocationService struct {
	channel *MethodChannel
	updates *Stream[LocationUpdate]
}

// LocationUpdate is a fix tagged with the subscription it was delivered for.
type LocationUpdate struct {
	SubscriptionID string
	Fix            LocationFix
}

// Location is the singleton location service.
var Location = &LocationService{
	channel: NewMethodChannel(locationChannelName),
	updates: NewStream(NewEventChannel(locationUpdatesChannelName), parseLocationUpdate),
}

// LastKnown returns the last known location without triggering a new
// request. A nil fix with a nil error means the host has none yet.
func (l *LocationService) LastKnown(ctx context.Context) (*LocationFix, error) {
	result, err := l.channel.Invoke("getLastLocation", nil)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	fix, err := parseLocationFix(result)
	if err != nil {
		return nil, err
	}
	return &fix, nil
}

// RequestUpdates starts an update subscription and delivers each fix to
// handler. The returned LocationSubscription must be released; fixes stop
// reaching handler as soon as Release is called.
func (l *LocationService) RequestUpdates(ctx context.Context, req LocationRequest, handler func(LocationFix)) (*LocationSubscription, error) {
	if handler == nil {
		return nil, ErrInvalidArguments
	}
	sub := &LocationSubscription{
		id:      uuid.NewString(),
		request: req,
		service: l,
	}
	// Listen first so the first fix after requestUpdates is not lost.
	sub.unsubscribe = l.updates.Listen(func(u LocationUpdate) {
		if u.SubscriptionID == sub.id && !sub.Released() {
			handler(u.Fix)
		}
	})
	if _, err := l.channel.Invoke("requestLocationUpdates", req.toArgs(sub.id)); err != nil {
		sub.unsubscribe()
		return nil, err
	}
	return sub, nil
}

// Updates returns the raw stream of location updates for all subscriptions.
func (l *LocationService) Updates() *Stream[LocationUpdate] {
	return l.updates
}

// LocationSubscription is a live update registration on the host.
type LocationSubscription struct {
	id          string
	request     LocationRequest
	service     *LocationService
	unsubscribe func()

	mu       sync.Mutex
	released bool
}

// ID returns the subscription identifier shared with the host.
func (s *LocationSubscription) ID() string {
	return s.id
}

// Request returns the request the subscription was created with.
func (s *LocationSubscription) Request() LocationRequest {
	return s.request
}

// Released reports whether Release has been called.
func (s *LocationSubscription) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release stops the subscription on the host. Calling it again is a no-op.
func (s *LocationSubscription) Release(ctx context.Context) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	s.unsubscribe()
	_, err := s.service.channel.Invoke("removeLocationUpdates", map[string]any{"id": s.id})
	return err
}

func parseLocationFix(data any) (LocationFix, error) {
	m := parseMap(data)
	if m == nil {
		return LocationFix{}, fmt.Errorf("expected map, got %T", data)
	}
	lat, ok := toFloat64(m["latitude"])
	if !ok {
		return LocationFix{}, fmt.Errorf("latitude: expected number, got %T", m["latitude"])
	}
	lng, ok := toFloat64(m["longitude"])
	if !ok {
		return LocationFix{}, fmt.Errorf("longitude: expected number, got %T", m["longitude"])
	}
	acc, _ := toFloat64(m["accuracy"])
	alt, _ := toFloat64(m["altitude"])
	return LocationFix{
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  acc,
		Altitude:  alt,
		Timestamp: parseTime(m["timestamp"]),
		Provider:  parseString(m["provider"]),
	}, nil
}

func parseLocationUpdate(data any) (LocationUpdate, error) {
	m := parseMap(data)
	if m == nil {
		return LocationUpdate{}, fmt.Errorf("expected map, got %T", data)
	}
	fix, err := parseLocationFix(m["location"])
	if err != nil {
		return LocationUpdate{}, err
	}
	return LocationUpdate{
		SubscriptionID: parseString(m["id"]),
		Fix:            fix,
	}, nil
}

// FixPayload encodes a fix the way the host sends it. Hosts written in Go
// use it to build getLastLocation results and update events.
func FixPayload(fix LocationFix) map[string]any {
	return map[string]any{
		"latitude":  fix.Latitude,
		"longitude": fix.Longitude,
		"accuracy":  fix.Accuracy,
		"altitude":  fix.Altitude,
		"timestamp": fix.Timestamp.UnixMilli(),
		"provider":  fix.Provider,
	}
}

// UpdatePayload encodes a location update event for subscription id.
func UpdatePayload(id string, fix LocationFix) map[string]any {
	return map[string]any{
		"id":       id,
		"location": FixPayload(fix),
	}
}
