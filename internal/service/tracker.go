package service

import (
	"math"
	"sort"
	"sync"

	"github.com/smartcity/fleet-tracker/internal/domain"
	"github.com/smartcity/fleet-tracker/pkg/utils"
)

// Speed smoothing parameters
const (
	MinDeltaSeconds   = 1.0
	MaxDeltaSeconds   = 30.0
	MinDistanceMeters = 2.0
	MaxSpeedKmh       = 150.0
	MaxRelativeChange = 0.5
	DecayFactor       = 0.8
	DecayFloorKmh     = 0.5
)

// IngestResult is the outcome of feeding one report to the tracker
type IngestResult struct {
	Report     domain.LocationReport
	SpeedKmh   float64
	Generation uint64
	First      bool
}

// Tracker turns noisy location reports into a smoothed per-entity speed.
// Reports for one entity must arrive in order; dt is taken from arrival order.
// Every timestamp is used as given, zero included; receipt time for reports
// that carry none is assigned where they are decoded.
type Tracker struct {
	mu      sync.Mutex
	states  map[domain.EntityID]*domain.TrackState
	nextGen uint64
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[domain.EntityID]*domain.TrackState),
	}
}

// Ingest records a report and returns the smoothed speed for it
func (t *Tracker) Ingest(report domain.LocationReport) IngestResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[report.EntityID]
	if !ok {
		t.nextGen++
		t.states[report.EntityID] = &domain.TrackState{
			LastLocation:         report,
			LastValidSpeedKmh:    0,
			LastUpdateTimeMillis: report.TimestampMillis,
			Generation:           t.nextGen,
		}
		return IngestResult{Report: report, SpeedKmh: 0, Generation: t.nextGen, First: true}
	}

	speed := estimateSpeed(state, report)
	state.LastUpdateTimeMillis = report.TimestampMillis
	state.LastLocation = report

	return IngestResult{Report: report, SpeedKmh: speed, Generation: state.Generation}
}

// estimateSpeed applies one report to state and returns the new speed.
// It does not advance LastLocation or LastUpdateTimeMillis.
func estimateSpeed(state *domain.TrackState, report domain.LocationReport) float64 {
	prev := state.LastLocation
	distance := utils.HaversineMeters(prev.Latitude, prev.Longitude, report.Latitude, report.Longitude)
	dt := float64(report.TimestampMillis-prev.TimestampMillis) / 1000

	last := state.LastValidSpeedKmh

	switch {
	case dt >= MinDeltaSeconds && dt <= MaxDeltaSeconds && distance >= MinDistanceMeters:
		speed := distance / dt * 3.6
		if last > 0 {
			maxChange := last * MaxRelativeChange
			if diff := speed - last; math.Abs(diff) > maxChange {
				speed = last + math.Copysign(maxChange, diff)
			}
		}
		state.LastValidSpeedKmh = utils.Clamp(speed, 0, MaxSpeedKmh)

	case dt >= MinDeltaSeconds && dt <= MaxDeltaSeconds:
		// below the GPS noise floor
		decayed := last * DecayFactor
		if decayed < DecayFloorKmh {
			decayed = 0
		}
		state.LastValidSpeedKmh = decayed

	default:
		if report.TimestampMillis-state.LastUpdateTimeMillis > int64(MaxDeltaSeconds*1000) {
			state.LastValidSpeedKmh = 0
		}
	}

	return state.LastValidSpeedKmh
}

// Drop removes every piece of state held for id. It reports whether the
// entity was live.
func (t *Tracker) Drop(id domain.EntityID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.states[id]; !ok {
		return false
	}
	delete(t.states, id)
	return true
}

// IsLive reports whether id is tracked under the given generation
func (t *Tracker) IsLive(id domain.EntityID, generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[id]
	return ok && state.Generation == generation
}

// Entities returns the ids of all live entities, sorted
func (t *Tracker) Entities() []domain.EntityID {
	t.mu.Lock()
	ids := make([]domain.EntityID, 0, len(t.states))
	for id := range t.states {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of live entities
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}
