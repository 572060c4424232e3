package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastKnown(t *testing.T) {
	b := newScriptedBridge(t)
	ts := time.UnixMilli(1700000000000)
	b.on(locationChannelName, "getLastLocation", func(map[string]any) (any, error) {
		return FixPayload(LocationFix{Latitude: 51.5, Longitude: -0.12, Accuracy: 8, Timestamp: ts, Provider: "static"}), nil
	})

	fix, err := Location.LastKnown(context.Background())
	require.NoError(t, err)
	require.NotNil(t, fix)
	assert.Equal(t, 51.5, fix.Latitude)
	assert.Equal(t, -0.12, fix.Longitude)
	assert.Equal(t, "static", fix.Provider)
	assert.True(t, fix.Timestamp.Equal(ts))
}

func TestLastKnownNone(t *testing.T) {
	newScriptedBridge(t)
	fix, err := Location.LastKnown(context.Background())
	require.NoError(t, err)
	assert.Nil(t, fix)
}

func TestRequestUpdatesDeliversOwnFixesUntilReleased(t *testing.T) {
	b := newScriptedBridge(t)
	ctx := context.Background()

	var fixes []LocationFix
	sub, err := Location.RequestUpdates(ctx, DefaultLocationRequest(), func(f LocationFix) {
		fixes = append(fixes, f)
	})
	require.NoError(t, err)

	calls := b.callsTo(locationChannelName, "requestLocationUpdates")
	require.Len(t, calls, 1)
	assert.Equal(t, sub.ID(), calls[0].Args["id"])
	assert.EqualValues(t, 5000, calls[0].Args["intervalMs"])
	assert.EqualValues(t, 3000, calls[0].Args["fastestIntervalMs"])
	assert.EqualValues(t, 100, calls[0].Args["priority"])

	emit(t, locationUpdatesChannelName, UpdatePayload(sub.ID(), LocationFix{Latitude: 1, Longitude: 2}))
	emit(t, locationUpdatesChannelName, UpdatePayload("someone-else", LocationFix{Latitude: 3, Longitude: 4}))
	require.Len(t, fixes, 1)

	require.NoError(t, sub.Release(ctx))
	require.NoError(t, sub.Release(ctx))
	assert.True(t, sub.Released())
	assert.Len(t, b.callsTo(locationChannelName, "removeLocationUpdates"), 1)

	emit(t, locationUpdatesChannelName, UpdatePayload(sub.ID(), LocationFix{Latitude: 5, Longitude: 6}))
	assert.Len(t, fixes, 1)
}

func TestRequestUpdatesNilHandler(t *testing.T) {
	newScriptedBridge(t)
	_, err := Location.RequestUpdates(context.Background(), DefaultLocationRequest(), nil)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestParseLocationFixRejectsMissingCoordinates(t *testing.T) {
	_, err := parseLocationFix(map[string]any{"latitude": 1.0})
	assert.Error(t, err)
	_, err = parseLocationFix("nope")
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"", PriorityHighAccuracy},
		{"high_accuracy", PriorityHighAccuracy},
		{"balanced", PriorityBalanced},
		{"low_power", PriorityLowPower},
		{"passive", PriorityPassive},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		if tt.in != "" {
			assert.Equal(t, tt.in, got.String())
		}
	}
	_, err := ParsePriority("turbo")
	assert.Error(t, err)
}
