package sources

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/go-drift/locate/pkg/platform"
)

// DefaultGeolocateTimeout bounds one geolocation request.
const DefaultGeolocateTimeout = 10 * time.Second

// GoogleGeolocation asks the Google Geolocation API for a position based
// on the caller's IP address and, optionally, nearby WiFi access points.
type GoogleGeolocation struct {
	client   *maps.Client
	scanWiFi bool
	timeout  time.Duration
}

// GoogleOption configures a GoogleGeolocation.
type GoogleOption func(*GoogleGeolocation)

// WithWiFiScan adds access points listed by nmcli to each request.
func WithWiFiScan() GoogleOption {
	return func(g *GoogleGeolocation) { g.scanWiFi = true }
}

// WithTimeout overrides DefaultGeolocateTimeout.
func WithTimeout(d time.Duration) GoogleOption {
	return func(g *GoogleGeolocation) { g.timeout = d }
}

// NewGoogleGeolocation creates a provider for apiKey. Client options are
// passed through to maps.NewClient.
func NewGoogleGeolocation(apiKey string, clientOpts []maps.ClientOption, opts ...GoogleOption) (*GoogleGeolocation, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, clientOpts...)...)
	if err != nil {
		return nil, err
	}
	g := &GoogleGeolocation{client: c, timeout: DefaultGeolocateTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name implements Provider.
func (g *GoogleGeolocation) Name() string { return "google" }

// Locate implements Provider.
func (g *GoogleGeolocation) Locate(ctx context.Context) (platform.LocationFix, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &maps.GeolocationRequest{ConsiderIP: true}
	if g.scanWiFi {
		// A failed scan still leaves the IP-based estimate.
		if aps, err := scanWiFi(ctx); err == nil {
			req.WiFiAccessPoints = aps
		}
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return platform.LocationFix{}, fmt.Errorf("geolocate: %w", err)
	}
	return platform.LocationFix{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
		Timestamp: now(),
		Provider:  g.Name(),
	}, nil
}

func scanWiFi(ctx context.Context) ([]maps.WiFiAccessPoint, error) {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil, fmt.Errorf("nmcli not found: %w", err)
	}
	out, err := exec.CommandContext(ctx, "nmcli", "-t", "-f", "BSSID,SIGNAL", "dev", "wifi", "list").Output()
	if err != nil {
		return nil, fmt.Errorf("nmcli: %w", err)
	}
	return parseNmcli(out), nil
}

// parseNmcli reads nmcli terse output. BSSID colons are escaped as "\:".
func parseNmcli(out []byte) []maps.WiFiAccessPoint {
	var aps []maps.WiFiAccessPoint
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.ReplaceAll(scanner.Text(), `\:`, "-")
		bssid, signal, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		mac := strings.ReplaceAll(strings.TrimSpace(bssid), "-", ":")
		if !isValidMAC(mac) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(signal))
		if err != nil {
			continue
		}
		aps = append(aps, maps.WiFiAccessPoint{
			MACAddress:     mac,
			SignalStrength: signalDBm(n),
		})
	}
	return aps
}

// signalDBm maps nmcli's 0-100 signal quality to dBm, 0 being -100 dBm and
// 100 being -50 dBm.
func signalDBm(quality int) float64 {
	quality = min(max(quality, 0), 100)
	return float64(quality)/2 - 100
}

func isValidMAC(mac string) bool {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 {
			return false
		}
		if _, err := strconv.ParseUint(p, 16, 8); err != nil {
			return false
		}
	}
	return true
}
