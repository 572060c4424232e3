package flow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-drift/locate/pkg/platform"
)

// FormatFix renders fix as "Lat: <lat>, Lng: <lng>".
func FormatFix(fix platform.LocationFix) string {
	return fmt.Sprintf("Lat: %s, Lng: %s", formatDegrees(fix.Latitude), formatDegrees(fix.Longitude))
}

// formatDegrees prints v as the shortest decimal that round-trips,
// always with a fractional part ("10.0"), switching to "d.dddE±n" form
// outside [1e-3, 1e7).
func formatDegrees(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	if abs := math.Abs(v); abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(v, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(e)
}
