package domain

import (
	"fmt"
	"math"
	"time"
)

// EntityID identifies a tracked driver or vehicle
type EntityID string

// LocationReport is a single raw GPS ping for an entity
type LocationReport struct {
	EntityID        EntityID `json:"entity_id"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	TimestampMillis int64    `json:"timestamp"`
}

// Validate checks the coordinate ranges of the report
func (r LocationReport) Validate() error {
	if r.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidReport)
	}
	if math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) {
		return fmt.Errorf("%w: coordinates must be numbers", ErrInvalidCoordinates)
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, r.Latitude)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, r.Longitude)
	}
	return nil
}

// Time returns the report timestamp as time.Time
func (r LocationReport) Time() time.Time {
	return time.UnixMilli(r.TimestampMillis)
}

// TrackState is the per-entity smoothing state owned by the tracker
type TrackState struct {
	LastLocation         LocationReport
	LastValidSpeedKmh    float64
	LastUpdateTimeMillis int64
	// Generation changes every time the entity is (re)created so late
	// label results for a dropped entity can be told apart.
	Generation uint64
}

// Snapshot is a full view of every live entity pushed by the location stream
type Snapshot map[EntityID]LocationReport

// MovementStatus is the coarse state shown next to an entity
type MovementStatus string

const (
	StatusMoving     MovementStatus = "moving"
	StatusStationary MovementStatus = "stationary"
)

// SpeedBand buckets speed for display colouring
type SpeedBand string

const (
	BandParked   SpeedBand = "parked"
	BandNormal   SpeedBand = "normal"
	BandFast     SpeedBand = "fast"
	BandVeryFast SpeedBand = "very_fast"
)

// ClassifySpeed returns the movement status and band for a speed in km/h
func ClassifySpeed(speedKmh float64) (MovementStatus, SpeedBand) {
	switch {
	case speedKmh > 80:
		return StatusMoving, BandVeryFast
	case speedKmh > 40:
		return StatusMoving, BandFast
	case speedKmh > 0:
		return StatusMoving, BandNormal
	default:
		return StatusStationary, BandParked
	}
}

// PositionUpdate is what the presentation layer receives per entity
type PositionUpdate struct {
	EntityID     EntityID       `json:"entity_id"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	Timestamp    time.Time      `json:"timestamp"`
	SpeedKmh     float64        `json:"speed_kmh"`
	Status       MovementStatus `json:"status"`
	SpeedBand    SpeedBand      `json:"speed_band"`
	Label        string         `json:"label,omitempty"`
	LabelPending bool           `json:"label_pending"`
}

// TrackPoint is a persisted report with the speed computed for it
type TrackPoint struct {
	EntityID   EntityID  `json:"entity_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	SpeedKmh   float64   `json:"speed_kmh"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Depot origin (Manila garage) used as the map's home marker
const (
	DepotLat = 14.5222733
	DepotLng = 120.999655
)

// Stream event types
const (
	EventPosition = "position"
	EventRemoved  = "removed"
)

// StreamEvent is the envelope pushed to presentation clients
type StreamEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	EntityID  EntityID        `json:"entity_id"`
	Position  *PositionUpdate `json:"position,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// SnapshotResult summarises how a snapshot was applied
type SnapshotResult struct {
	Updated  int        `json:"updated"`
	Dropped  []EntityID `json:"dropped"`
	Rejected []EntityID `json:"rejected"`
}
