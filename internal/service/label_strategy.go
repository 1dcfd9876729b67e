package service

import "context"

// LabelStrategy is one step of the reverse geocoding chain
type LabelStrategy interface {
	// Name identifies the strategy in logs and cache entries
	Name() string

	// Resolve returns a human-readable label for the coordinate.
	// domain.ErrNoResult means the provider had nothing for it.
	Resolve(ctx context.Context, lat, lng float64) (string, error)
}
