package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

// userRecord mirrors one child of the realtime database "users" node
type userRecord struct {
	Name            string          `json:"name,omitempty"`
	CurrentLocation *locationRecord `json:"currentLocation"`
}

type locationRecord struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp *float64 `json:"timestamp"`
}

// DecodeSnapshot parses a users snapshot into a domain snapshot.
// Users without a current location, or with a null coordinate, are left out
// so the tracker drops them. Locations without a timestamp get receivedAt.
func DecodeSnapshot(data []byte, receivedAt time.Time) (domain.Snapshot, error) {
	var users map[string]*userRecord
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("source: failed to decode snapshot: %w", err)
	}

	snap := make(domain.Snapshot, len(users))
	for uid, user := range users {
		if uid == "" || user == nil || user.CurrentLocation == nil {
			continue
		}
		loc := user.CurrentLocation
		if loc.Latitude == nil || loc.Longitude == nil {
			continue
		}
		ts := receivedAt.UnixMilli()
		if loc.Timestamp != nil {
			ts = int64(*loc.Timestamp)
		}
		id := domain.EntityID(uid)
		snap[id] = domain.LocationReport{
			EntityID:        id,
			Latitude:        *loc.Latitude,
			Longitude:       *loc.Longitude,
			TimestampMillis: ts,
		}
	}
	return snap, nil
}
