package service

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

const coordinateSource = "coordinates"

// DefaultLookupTimeout bounds a coalesced lookup shared by several callers
const DefaultLookupTimeout = 15 * time.Second

// LabelResolver turns coordinates into place labels.
// It consults the cache, then each strategy in order, and always returns a label.
type LabelResolver struct {
	cache      *LabelCache
	strategies []LabelStrategy
	repo       DataRepository
	group      *singleflight.Group
	timeout    time.Duration
}

// NewLabelResolver creates a resolver. repo may be nil; coalesce merges
// concurrent lookups of the same rounded coordinate into one provider call.
func NewLabelResolver(cache *LabelCache, strategies []LabelStrategy, repo DataRepository, coalesce bool) *LabelResolver {
	r := &LabelResolver{
		cache:      cache,
		strategies: strategies,
		repo:       repo,
		timeout:    DefaultLookupTimeout,
	}
	if coalesce {
		r.group = &singleflight.Group{}
	}
	return r
}

// CachedLabel returns a fresh cached label without calling any provider
func (r *LabelResolver) CachedLabel(lat, lng float64) (string, bool) {
	entry, ok := r.cache.Get(domain.NewGeoKey(lat, lng))
	if !ok {
		return "", false
	}
	return entry.Label, true
}

// ResolveLabel returns a label for the coordinate. Provider failures are
// logged and skipped, never returned.
func (r *LabelResolver) ResolveLabel(ctx context.Context, lat, lng float64) string {
	key := domain.NewGeoKey(lat, lng)
	if entry, ok := r.cache.Get(key); ok {
		return entry.Label
	}

	if r.group == nil {
		return r.resolve(ctx, key, lat, lng)
	}

	// the shared lookup must not inherit one caller's cancellation
	ch := r.group.DoChan(key.String(), func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		return r.resolve(shared, key, lat, lng), nil
	})
	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return CoordinateLabel(lat, lng)
	}
}

func (r *LabelResolver) resolve(ctx context.Context, key domain.GeoKey, lat, lng float64) string {
	// a coalesced call that just finished may have filled the entry
	if entry, ok := r.cache.Get(key); ok {
		return entry.Label
	}

	label, source := "", coordinateSource
	for _, s := range r.strategies {
		l, err := s.Resolve(ctx, lat, lng)
		if err != nil {
			if !errors.Is(err, domain.ErrNoResult) {
				log.Printf("warning: %s geocoding failed for %s: %v", s.Name(), key, err)
			}
			continue
		}
		if l != "" {
			label, source = l, s.Name()
			break
		}
	}
	if label == "" {
		label = CoordinateLabel(lat, lng)
	}

	// labels from an aborted lookup are returned but not cached
	if ctx.Err() != nil {
		return label
	}

	entry := r.cache.Put(key, label, source)
	if r.repo != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.repo.SaveLabel(saveCtx, entry); err != nil {
			log.Printf("Failed to save geo label: %v", err)
		}
	}
	return label
}

// Warm loads recently persisted labels into the cache and returns how many were loaded
func (r *LabelResolver) Warm(ctx context.Context, limit int) (int, error) {
	if r.repo == nil {
		return 0, nil
	}
	since := r.cache.now().Add(-r.cache.ttl)
	entries, err := r.repo.RecentLabels(ctx, since, limit)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, e := range entries {
		if r.cache.Load(e) {
			loaded++
		}
	}
	return loaded, nil
}
