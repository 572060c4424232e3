package sources

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/go-drift/locate/pkg/platform"
)

const (
	ggaFix     = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix   = "$GPGGA,123519,4807.038,N,01131.000,E,0,00,,,M,,M,,*52"
	rmcValid   = "$GPRMC,225446,A,4916.45,N,12311.12,W,000.5,054.7,191194,020.3,E*68"
	rmcInvalid = "$GPRMC,225446,V,4916.45,N,12311.12,W,000.5,054.7,191194,020.3,E*7F"
)

func TestReadFix(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		lat     float64
		lng     float64
		wantErr error
	}{
		{"gga", ggaFix + "\r\n", 48.1173, 11.516667, nil},
		{"rmc", rmcValid + "\r\n", 49.274167, -123.185333, nil},
		{"skips invalid", strings.Join([]string{ggaNoFix, rmcInvalid, "garbage", "$GPGGA,bad*00", rmcValid}, "\r\n"), 49.274167, -123.185333, nil},
		{"none valid", ggaNoFix + "\n" + rmcInvalid + "\n", 0, 0, ErrNoFix},
		{"empty", "", 0, 0, ErrNoFix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix, err := ReadFix(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.lat, fix.Latitude, 1e-5)
			assert.InDelta(t, tt.lng, fix.Longitude, 1e-5)
		})
	}
}

func TestReadFixGGAFields(t *testing.T) {
	fix, err := ReadFix(strings.NewReader(ggaFix))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, fix.Accuracy, 1e-9)
	assert.InDelta(t, 545.4, fix.Altitude, 1e-9)
	assert.Equal(t, 12, fix.Timestamp.Hour())
	assert.Equal(t, 35, fix.Timestamp.Minute())
}

func TestReadFixRMCDate(t *testing.T) {
	fix, err := ReadFix(strings.NewReader(rmcValid))
	require.NoError(t, err)
	assert.Equal(t, time.Date(1994, time.November, 19, 22, 54, 46, 0, time.UTC), fix.Timestamp)
}

func TestNMEASerialOpenError(t *testing.T) {
	n := &NMEASerial{Port: "/nonexistent/tty"}
	_, err := n.Locate(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "nmea", n.Name())
}

func TestStatic(t *testing.T) {
	fix, err := Static{Latitude: 37.4219983, Longitude: -122.084}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37.4219983, fix.Latitude)
	assert.Equal(t, "static", fix.Provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Static{}.Locate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type failing struct{ err error }

func (f failing) Name() string { return "failing" }
func (f failing) Locate(context.Context) (platform.LocationFix, error) {
	return platform.LocationFix{}, f.err
}

func TestChain(t *testing.T) {
	boom := errors.New("boom")

	fix, err := Chain{failing{boom}, Static{Latitude: 1, Longitude: 2}}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, fix.Latitude)

	_, err = Chain{failing{boom}, failing{ErrNoFix}}.Locate(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrNoFix)
	assert.Contains(t, err.Error(), "failing: boom")

	_, err = Chain{}.Locate(context.Background())
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestGoogleGeolocation(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location":{"lat":37.4219983,"lng":-122.084},"accuracy":1200}`))
	}))
	defer server.Close()

	g, err := NewGoogleGeolocation("AIzaTestKey", []maps.ClientOption{maps.WithBaseURL(server.URL)})
	require.NoError(t, err)

	fix, err := g.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37.4219983, fix.Latitude)
	assert.Equal(t, -122.084, fix.Longitude)
	assert.Equal(t, 1200.0, fix.Accuracy)
	assert.Equal(t, "google", fix.Provider)
	assert.Contains(t, gotBody, `"considerIp":true`)
}

func TestGoogleGeolocationRequiresKey(t *testing.T) {
	_, err := NewGoogleGeolocation("", nil)
	assert.Error(t, err)
}

func TestParseNmcli(t *testing.T) {
	out := []byte("AA\\:BB\\:CC\\:DD\\:EE\\:FF:72\nnot-a-line\n11\\:22\\:33\\:44\\:55\\:66:x\nZZ\\:BB\\:CC\\:DD\\:EE\\:FF:40\n")
	aps := parseNmcli(out)
	require.Len(t, aps, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", aps[0].MACAddress)
	assert.Equal(t, -64.0, aps[0].SignalStrength)
}

func TestSignalDBm(t *testing.T) {
	for _, tc := range []struct {
		quality int
		want    float64
	}{
		{0, -100},
		{50, -75},
		{100, -50},
		{130, -50},
		{-5, -100},
	} {
		assert.Equal(t, tc.want, signalDBm(tc.quality), "quality %d", tc.quality)
	}
}
