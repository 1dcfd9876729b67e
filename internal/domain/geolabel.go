package domain

import (
	"fmt"
	"time"

	"github.com/smartcity/fleet-tracker/pkg/utils"
)

// LabelTTL is how long a resolved label stays fresh
const LabelTTL = time.Hour

// GeoKey is a coordinate pair rounded to 6 decimal places
type GeoKey struct {
	Lat float64
	Lng float64
}

// NewGeoKey rounds a coordinate pair into a cache key
func NewGeoKey(lat, lng float64) GeoKey {
	return GeoKey{Lat: utils.RoundTo(lat, 6), Lng: utils.RoundTo(lng, 6)}
}

func (k GeoKey) String() string {
	return fmt.Sprintf("%.6f,%.6f", k.Lat, k.Lng)
}

// GeoLabelCacheEntry is a resolved label for a rounded coordinate
type GeoLabelCacheEntry struct {
	Key            GeoKey `json:"-"`
	Label          string `json:"label"`
	Source         string `json:"source"`
	CachedAtMillis int64  `json:"cached_at"`
}

// Fresh reports whether the entry is still usable at now given ttl
func (e GeoLabelCacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.CachedAtMillis < ttl.Milliseconds()
}
