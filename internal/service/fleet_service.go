package service

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartcity/fleet-tracker/internal/domain"
	"github.com/smartcity/fleet-tracker/pkg/utils"
)

// FleetTopic carries updates for every entity
const FleetTopic = "fleet"

// Publisher fans payloads out to presentation clients
type Publisher interface {
	Broadcast(topic string, payload []byte)
}

// FleetService applies location streams to the tracker and publishes
// speed and label updates per entity
type FleetService struct {
	tracker      *Tracker
	resolver     *LabelResolver
	repo         DataRepository
	publisher    Publisher
	labelTimeout time.Duration

	mu        sync.Mutex
	positions map[domain.EntityID]domain.PositionUpdate

	wgBg sync.WaitGroup // tracks background goroutines for graceful shutdown
}

// NewFleetService creates a new fleet service. publisher and repo may be nil.
func NewFleetService(
	tracker *Tracker,
	resolver *LabelResolver,
	repo DataRepository,
	publisher Publisher,
	labelTimeout time.Duration,
) *FleetService {
	if labelTimeout <= 0 {
		labelTimeout = 15 * time.Second
	}
	return &FleetService{
		tracker:      tracker,
		resolver:     resolver,
		repo:         repo,
		publisher:    publisher,
		labelTimeout: labelTimeout,
		positions:    make(map[domain.EntityID]domain.PositionUpdate),
	}
}

// WaitBackground blocks until all label lookups and saves complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *FleetService) WaitBackground() {
	s.wgBg.Wait()
}

// HandleReport validates and ingests a single report
func (s *FleetService) HandleReport(ctx context.Context, report domain.LocationReport) (domain.PositionUpdate, error) {
	if err := ctx.Err(); err != nil {
		return domain.PositionUpdate{}, err
	}
	if err := report.Validate(); err != nil {
		return domain.PositionUpdate{}, err
	}
	return s.ingest(ctx, report), nil
}

// ApplySnapshot ingests every entity in snap and drops live entities missing from it.
// It stops early once ctx is done.
func (s *FleetService) ApplySnapshot(ctx context.Context, snap domain.Snapshot) domain.SnapshotResult {
	result := domain.SnapshotResult{Dropped: []domain.EntityID{}, Rejected: []domain.EntityID{}}
	if ctx.Err() != nil {
		return result
	}

	for _, id := range s.tracker.Entities() {
		if _, ok := snap[id]; !ok && s.Drop(id) {
			result.Dropped = append(result.Dropped, id)
		}
	}

	ids := make([]domain.EntityID, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if ctx.Err() != nil {
			log.Printf("warning: snapshot cancelled after %d of %d entities", result.Updated, len(ids))
			break
		}
		report := snap[id]
		report.EntityID = id
		if err := report.Validate(); err != nil {
			log.Printf("warning: rejected report for %s: %v", id, err)
			result.Rejected = append(result.Rejected, id)
			continue
		}
		s.ingest(ctx, report)
		result.Updated++
	}
	return result
}

// ingest applies one valid report. Background work outlives ctx but keeps its values.
func (s *FleetService) ingest(ctx context.Context, report domain.LocationReport) domain.PositionUpdate {
	bg := context.WithoutCancel(ctx)

	s.mu.Lock()
	res := s.tracker.Ingest(report)
	report = res.Report

	status, band := domain.ClassifySpeed(res.SpeedKmh)
	update := domain.PositionUpdate{
		EntityID:  report.EntityID,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Timestamp: report.Time(),
		SpeedKmh:  utils.RoundTo(res.SpeedKmh, 1),
		Status:    status,
		SpeedBand: band,
	}
	if label, ok := s.resolver.CachedLabel(report.Latitude, report.Longitude); ok {
		update.Label = label
	} else {
		if prev, ok := s.positions[report.EntityID]; ok && !res.First {
			update.Label = prev.Label
		}
		update.LabelPending = true
	}
	s.positions[report.EntityID] = update
	s.publish(domain.EventPosition, report.EntityID, &update)
	s.mu.Unlock()

	if update.LabelPending {
		s.wgBg.Add(1)
		go s.resolveLabel(bg, report, res.Generation)
	}

	if s.repo != nil {
		s.wgBg.Add(1)
		go func() {
			defer s.wgBg.Done()
			bgCtx, cancel := context.WithTimeout(bg, 5*time.Second)
			defer cancel()
			if err := s.repo.SaveReport(bgCtx, report, res.SpeedKmh); err != nil {
				log.Printf("Failed to save location report: %v", err)
			}
		}()
	}

	return update
}

// resolveLabel looks up the label for report and attaches it to the entity
// unless the entity was dropped or has moved to another coordinate meanwhile
func (s *FleetService) resolveLabel(parent context.Context, report domain.LocationReport, generation uint64) {
	defer s.wgBg.Done()

	ctx, cancel := context.WithTimeout(parent, s.labelTimeout)
	defer cancel()
	label := s.resolver.ResolveLabel(ctx, report.Latitude, report.Longitude)

	key := domain.NewGeoKey(report.Latitude, report.Longitude)

	s.mu.Lock()
	current, ok := s.positions[report.EntityID]
	if !ok || !s.tracker.IsLive(report.EntityID, generation) ||
		domain.NewGeoKey(current.Latitude, current.Longitude) != key {
		s.mu.Unlock()
		return
	}
	current.Label = label
	current.LabelPending = false
	s.positions[report.EntityID] = current
	s.publish(domain.EventPosition, report.EntityID, &current)
	s.mu.Unlock()
}

// Drop removes an entity and tells clients it is gone
func (s *FleetService) Drop(id domain.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := s.tracker.Drop(id)
	delete(s.positions, id)
	if dropped {
		s.publish(domain.EventRemoved, id, nil)
	}
	return dropped
}

// Positions returns the latest update of every live entity sorted by id
func (s *FleetService) Positions() []domain.PositionUpdate {
	s.mu.Lock()
	out := make([]domain.PositionUpdate, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// TrackedCount returns the number of entities the tracker holds state for
func (s *FleetService) TrackedCount() int {
	return s.tracker.Len()
}

// Position returns the latest update of one entity
func (s *FleetService) Position(id domain.EntityID) (domain.PositionUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return domain.PositionUpdate{}, domain.ErrEntityNotFound
	}
	return p, nil
}

// ResolveLabel resolves a label for an arbitrary coordinate
func (s *FleetService) ResolveLabel(ctx context.Context, lat, lng float64) (string, error) {
	if err := (domain.LocationReport{EntityID: "query", Latitude: lat, Longitude: lng}).Validate(); err != nil {
		return "", err
	}
	return s.resolver.ResolveLabel(ctx, lat, lng), nil
}

// Track returns the persisted history of an entity
func (s *FleetService) Track(ctx context.Context, id domain.EntityID, from, to time.Time) ([]domain.TrackPoint, error) {
	if s.repo == nil {
		return []domain.TrackPoint{}, nil
	}
	return s.repo.GetTrack(ctx, id, from, to)
}

// TrackDistanceKm sums the great-circle legs between consecutive points
func TrackDistanceKm(points []domain.TrackPoint) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		total += utils.Haversine(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	}
	return total
}

// publish is called with s.mu held so clients see events in state order.
// Publisher.Broadcast must not block.
func (s *FleetService) publish(eventType string, id domain.EntityID, update *domain.PositionUpdate) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(domain.StreamEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		EntityID:  id,
		Position:  update,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("Failed to encode stream event: %v", err)
		return
	}
	s.publisher.Broadcast(FleetTopic, payload)
	s.publisher.Broadcast(string(id), payload)
}
