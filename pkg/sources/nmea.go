package sources

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"

	"github.com/go-drift/locate/pkg/platform"
)

// DefaultBaud is the usual NMEA 0183 line speed.
const DefaultBaud = 9600

// maxSentences bounds how many lines ReadFix scans before giving up.
const maxSentences = 256

// NMEASerial reads positions from a GPS receiver on a serial port.
type NMEASerial struct {
	// Port is the device path, e.g. /dev/ttyUSB0.
	Port string
	// Baud is the line speed. Zero selects DefaultBaud.
	Baud int
	// ReadTimeout bounds each read on the port. Zero blocks.
	ReadTimeout time.Duration
}

// Name implements Provider.
func (n *NMEASerial) Name() string { return "nmea" }

// Locate opens the port, reads until the first valid GGA or RMC sentence
// and closes the port again.
func (n *NMEASerial) Locate(ctx context.Context) (platform.LocationFix, error) {
	baud := n.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        n.Port,
		Baud:        baud,
		ReadTimeout: n.ReadTimeout,
	})
	if err != nil {
		return platform.LocationFix{}, fmt.Errorf("open %s: %w", n.Port, err)
	}
	defer port.Close()

	// Closing the port unblocks a pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()

	fix, err := ReadFix(port)
	if ctx.Err() != nil {
		return platform.LocationFix{}, ctx.Err()
	}
	if err != nil {
		return platform.LocationFix{}, err
	}
	fix.Provider = n.Name()
	return fix, nil
}

// ReadFix scans NMEA sentences from r and returns the first valid GGA
// or RMC position. Lines that fail to parse are skipped.
func ReadFix(r io.Reader) (platform.LocationFix, error) {
	scanner := bufio.NewScanner(r)
	for i := 0; i < maxSentences && scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		if fix, ok := fixFromSentence(sentence); ok {
			return fix, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return platform.LocationFix{}, err
	}
	return platform.LocationFix{}, ErrNoFix
}

func fixFromSentence(s nmea.Sentence) (platform.LocationFix, bool) {
	switch m := s.(type) {
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
			return platform.LocationFix{}, false
		}
		return platform.LocationFix{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			// HDOP stands in for accuracy.
			Accuracy:  m.HDOP,
			Altitude:  m.Altitude,
			Timestamp: sentenceTime(nmea.Date{}, m.Time),
		}, true
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return platform.LocationFix{}, false
		}
		return platform.LocationFix{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Timestamp: sentenceTime(m.Date, m.Time),
		}, true
	}
	return platform.LocationFix{}, false
}

// sentenceTime combines an NMEA date and time in UTC. GGA carries no date,
// so today's date is used.
func sentenceTime(d nmea.Date, t nmea.Time) time.Time {
	if !t.Valid {
		return now()
	}
	year, month, day := now().UTC().Date()
	if d.Valid {
		year, month, day = 2000+d.YY, time.Month(d.MM), d.DD
		if d.YY >= 80 {
			year -= 100
		}
	}
	return time.Date(year, month, day, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

var now = time.Now
