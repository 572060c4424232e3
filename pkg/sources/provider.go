// Package sources produces location fixes for hosts that have no platform
// positioning service of their own, such as the terminal host.
package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-drift/locate/pkg/platform"
)

// ErrNoFix is returned when a provider answered but had no usable position.
var ErrNoFix = errors.New("sources: no fix")

// Provider returns the device's current position.
type Provider interface {
	// Name identifies the provider in logs and in LocationFix.Provider.
	Name() string
	// Locate returns a single fix. It blocks until a fix is available,
	// the provider gives up, or ctx ends.
	Locate(ctx context.Context) (platform.LocationFix, error)
}

// Static always reports the same position.
type Static struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Name implements Provider.
func (s Static) Name() string { return "static" }

// Locate implements Provider.
func (s Static) Locate(ctx context.Context) (platform.LocationFix, error) {
	if err := ctx.Err(); err != nil {
		return platform.LocationFix{}, err
	}
	return platform.LocationFix{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Accuracy:  s.Accuracy,
		Timestamp: now(),
		Provider:  s.Name(),
	}, nil
}

// Chain asks each provider in turn and returns the first fix. Fixes are
// never merged.
type Chain []Provider

// Name implements Provider.
func (c Chain) Name() string { return "chain" }

// Locate implements Provider. When every provider fails the errors are
// joined in order.
func (c Chain) Locate(ctx context.Context) (platform.LocationFix, error) {
	if len(c) == 0 {
		return platform.LocationFix{}, ErrNoFix
	}
	var errs []error
	for _, p := range c {
		fix, err := p.Locate(ctx)
		if err == nil {
			return fix, nil
		}
		if ctx.Err() != nil {
			return platform.LocationFix{}, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return platform.LocationFix{}, errors.Join(errs...)
}
