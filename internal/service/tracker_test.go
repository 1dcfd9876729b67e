package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/fleet-tracker/internal/domain"
	"github.com/smartcity/fleet-tracker/pkg/utils"
)

func report(id string, lat, lng float64, ts int64) domain.LocationReport {
	return domain.LocationReport{EntityID: domain.EntityID(id), Latitude: lat, Longitude: lng, TimestampMillis: ts}
}

// trackerAt returns a tracker whose state for id already holds speed at the given location
func trackerAt(id string, lat, lng float64, ts int64, speed float64) *Tracker {
	tr := NewTracker()
	tr.Ingest(report(id, lat, lng, ts))
	tr.states[domain.EntityID(id)].LastValidSpeedKmh = speed
	return tr
}

func stateOf(tr *Tracker, id string) (domain.TrackState, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	state, ok := tr.states[domain.EntityID(id)]
	if !ok {
		return domain.TrackState{}, false
	}
	return *state, true
}

func TestTrackerFirstReportIsZero(t *testing.T) {
	tr := NewTracker()
	res := tr.Ingest(report("a", 14.55, 121.0, 1000))

	assert.True(t, res.First)
	assert.Zero(t, res.SpeedKmh)

	state, ok := stateOf(tr, "a")
	require.True(t, ok)
	assert.Equal(t, int64(1000), state.LastUpdateTimeMillis)
	assert.Zero(t, state.LastValidSpeedKmh)
}

func TestTrackerZeroTimestampIsUsedAsGiven(t *testing.T) {
	tr := NewTracker()
	first := tr.Ingest(report("a", 14.5500, 121.0000, 0))
	assert.Zero(t, first.Report.TimestampMillis)

	res := tr.Ingest(report("a", 14.5502, 121.0000, 5000))
	assert.InDelta(t, 16.0, res.SpeedKmh, 0.05)

	state, ok := stateOf(tr, "a")
	require.True(t, ok)
	assert.Equal(t, int64(5000), state.LastUpdateTimeMillis)
}

func TestTrackerRawSpeed(t *testing.T) {
	tr := NewTracker()
	tr.Ingest(report("a", 14.5500, 121.0000, 0))
	res := tr.Ingest(report("a", 14.5502, 121.0000, 5000))

	d := utils.HaversineMeters(14.5500, 121.0, 14.5502, 121.0)
	assert.InDelta(t, 22.2, d, 0.1)
	assert.InDelta(t, d/5*3.6, res.SpeedKmh, 1e-9)
	assert.InDelta(t, 16.0, res.SpeedKmh, 0.1)
	assert.False(t, res.First)
}

func TestTrackerRelativeChangeClampDown(t *testing.T) {
	// ~13.9 m in 5 s is ~10 km/h
	tr := trackerAt("a", 14.55, 121.0, 0, 100)
	res := tr.Ingest(report("a", 14.550125, 121.0, 5000))

	assert.Equal(t, 50.0, res.SpeedKmh)
}

func TestTrackerRelativeChangeClampUp(t *testing.T) {
	// ~111 m in 5 s is ~80 km/h
	tr := trackerAt("a", 14.55, 121.0, 0, 20)
	res := tr.Ingest(report("a", 14.551, 121.0, 5000))

	assert.Equal(t, 30.0, res.SpeedKmh)
}

func TestTrackerWithinRelativeChange(t *testing.T) {
	tr := trackerAt("a", 14.55, 121.0, 0, 15)
	res := tr.Ingest(report("a", 14.5502, 121.0, 5000))

	d := utils.HaversineMeters(14.55, 121.0, 14.5502, 121.0)
	assert.InDelta(t, d/5*3.6, res.SpeedKmh, 1e-9)
}

func TestTrackerSpeedCap(t *testing.T) {
	// ~1.1 km in 10 s is ~400 km/h, the clamp allows 210, the cap wins
	tr := trackerAt("a", 14.55, 121.0, 0, 140)
	res := tr.Ingest(report("a", 14.56, 121.0, 10_000))

	assert.Equal(t, MaxSpeedKmh, res.SpeedKmh)

	// no prior speed: the clamp does not apply, the cap does
	tr = NewTracker()
	tr.Ingest(report("b", 14.55, 121.0, 0))
	res = tr.Ingest(report("b", 14.56, 121.0, 10_000))
	assert.Equal(t, MaxSpeedKmh, res.SpeedKmh)
}

func TestTrackerDecayBelowNoiseFloor(t *testing.T) {
	tr := trackerAt("a", 14.55, 121.0, 0, 10)
	res := tr.Ingest(report("a", 14.55001, 121.0, 2000))
	assert.InDelta(t, 8.0, res.SpeedKmh, 1e-9)

	tr = trackerAt("b", 14.55, 121.0, 0, 0.6)
	res = tr.Ingest(report("b", 14.55, 121.0, 2000))
	assert.Zero(t, res.SpeedKmh)

	tr = trackerAt("c", 14.55, 121.0, 0, 0)
	res = tr.Ingest(report("c", 14.55, 121.0, 2000))
	assert.Zero(t, res.SpeedKmh)
}

func TestTrackerShortGapRetainsSpeed(t *testing.T) {
	tr := trackerAt("a", 14.55, 121.0, 0, 33)
	res := tr.Ingest(report("a", 14.56, 121.0, 500))

	assert.Equal(t, 33.0, res.SpeedKmh)
	state, _ := stateOf(tr, "a")
	assert.Equal(t, int64(500), state.LastUpdateTimeMillis)
}

func TestTrackerLongGapForcesZero(t *testing.T) {
	tr := trackerAt("a", 14.55, 121.0, 0, 33)
	res := tr.Ingest(report("a", 14.56, 121.0, 30_001))

	assert.Zero(t, res.SpeedKmh)
	state, _ := stateOf(tr, "a")
	assert.Zero(t, state.LastValidSpeedKmh)
}

func TestTrackerBoundaryDeltas(t *testing.T) {
	// dt exactly 30 s is still a valid interval
	tr := trackerAt("a", 14.55, 121.0, 0, 0)
	res := tr.Ingest(report("a", 14.551, 121.0, 30_000))
	d := utils.HaversineMeters(14.55, 121.0, 14.551, 121.0)
	assert.InDelta(t, d/30*3.6, res.SpeedKmh, 1e-9)

	// dt exactly 1 s is valid too
	tr = trackerAt("b", 14.55, 121.0, 0, 0)
	res = tr.Ingest(report("b", 14.55005, 121.0, 1000))
	d = utils.HaversineMeters(14.55, 121.0, 14.55005, 121.0)
	assert.InDelta(t, d*3.6, res.SpeedKmh, 1e-9)
}

func TestTrackerOutOfOrderRetainsSpeed(t *testing.T) {
	tr := trackerAt("a", 14.55, 121.0, 10_000, 12)
	res := tr.Ingest(report("a", 14.551, 121.0, 5000))

	assert.Equal(t, 12.0, res.SpeedKmh)
}

func TestTrackerDrop(t *testing.T) {
	tr := NewTracker()
	first := tr.Ingest(report("a", 14.55, 121.0, 0))
	tr.Ingest(report("a", 14.5502, 121.0, 5000))

	assert.True(t, tr.IsLive("a", first.Generation))
	assert.True(t, tr.Drop("a"))
	assert.False(t, tr.Drop("a"))
	assert.False(t, tr.IsLive("a", first.Generation))

	_, ok := stateOf(tr, "a")
	assert.False(t, ok)

	again := tr.Ingest(report("a", 14.5504, 121.0, 10_000))
	assert.True(t, again.First)
	assert.Zero(t, again.SpeedKmh)
	assert.NotEqual(t, first.Generation, again.Generation)
	assert.False(t, tr.IsLive("a", first.Generation))
}

func TestTrackerEntities(t *testing.T) {
	tr := NewTracker()
	tr.Ingest(report("b", 1, 1, 1))
	tr.Ingest(report("a", 1, 1, 1))

	assert.Equal(t, []domain.EntityID{"a", "b"}, tr.Entities())
	assert.Equal(t, 2, tr.Len())
}

func TestTrackerConcurrentIngestAndDrop(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				res := tr.Ingest(report("a", 14.55, 121.0, int64(j*1000)))
				assert.GreaterOrEqual(t, res.SpeedKmh, 0.0)
				if j%10 == i {
					tr.Drop("a")
				}
			}
		}(i)
	}
	wg.Wait()
}
