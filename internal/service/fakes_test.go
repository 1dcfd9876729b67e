package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

// countingStrategy answers with label (or err) and counts calls
type countingStrategy struct {
	name  string
	label string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *countingStrategy) Name() string { return s.name }

func (s *countingStrategy) Resolve(ctx context.Context, _, _ float64) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.label, s.err
}

// memRepo is an in-memory DataRepository
type memRepo struct {
	mu      sync.Mutex
	reports []domain.LocationReport
	speeds  []float64
	labels  []domain.GeoLabelCacheEntry
	failAll bool
}

var errRepo = errors.New("repo failure")

func (r *memRepo) SaveReport(_ context.Context, report domain.LocationReport, speed float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errRepo
	}
	r.reports = append(r.reports, report)
	r.speeds = append(r.speeds, speed)
	return nil
}

func (r *memRepo) SaveLabel(_ context.Context, entry domain.GeoLabelCacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errRepo
	}
	r.labels = append(r.labels, entry)
	return nil
}

func (r *memRepo) RecentLabels(_ context.Context, since time.Time, limit int) ([]domain.GeoLabelCacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errRepo
	}
	out := []domain.GeoLabelCacheEntry{}
	for _, l := range r.labels {
		if l.CachedAtMillis > since.UnixMilli() && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memRepo) GetTrack(_ context.Context, id domain.EntityID, from, to time.Time) ([]domain.TrackPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errRepo
	}
	var out []domain.TrackPoint
	for i, rep := range r.reports {
		if rep.EntityID == id && !rep.Time().Before(from) && !rep.Time().After(to) {
			out = append(out, domain.TrackPoint{EntityID: id, Latitude: rep.Latitude, Longitude: rep.Longitude, SpeedKmh: r.speeds[i], RecordedAt: rep.Time()})
		}
	}
	return out, nil
}

func (r *memRepo) Health(context.Context) error {
	if r.failAll {
		return errRepo
	}
	return nil
}

func (r *memRepo) reportCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func (r *memRepo) labelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.labels)
}
