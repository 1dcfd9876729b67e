package postgres

import (
	"context"
	"time"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

// MockRepository implements domain.TrackRepository for demo mode without a database
type MockRepository struct{}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SaveReport is a no-op in mock mode
func (r *MockRepository) SaveReport(ctx context.Context, report domain.LocationReport, speedKmh float64) error {
	return nil
}

// SaveLabel is a no-op in mock mode
func (r *MockRepository) SaveLabel(ctx context.Context, entry domain.GeoLabelCacheEntry) error {
	return nil
}

// RecentLabels returns nothing in mock mode
func (r *MockRepository) RecentLabels(ctx context.Context, since time.Time, limit int) ([]domain.GeoLabelCacheEntry, error) {
	return nil, nil
}

// GetTrack returns a single canned point at the depot
func (r *MockRepository) GetTrack(ctx context.Context, id domain.EntityID, from, to time.Time) ([]domain.TrackPoint, error) {
	return []domain.TrackPoint{
		{
			EntityID:   id,
			Latitude:   domain.DepotLat,
			Longitude:  domain.DepotLng,
			SpeedKmh:   0,
			RecordedAt: to,
		},
	}, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
