package domain

import (
	"context"
	"time"
)

// TrackRepository defines the interface for track persistence
type TrackRepository interface {
	// SaveReport persists a report together with the speed computed for it
	SaveReport(ctx context.Context, report LocationReport, speedKmh float64) error

	// SaveLabel persists a resolved geocoding label
	SaveLabel(ctx context.Context, entry GeoLabelCacheEntry) error

	// RecentLabels returns labels cached after since, newest first
	RecentLabels(ctx context.Context, since time.Time, limit int) ([]GeoLabelCacheEntry, error)

	// GetTrack retrieves the persisted points of an entity within a time range
	GetTrack(ctx context.Context, id EntityID, from, to time.Time) ([]TrackPoint, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}
