package service

import (
	"context"
	"fmt"
	"math"

	"github.com/smartcity/fleet-tracker/pkg/utils"
)

// Area is a named neighbourhood centre
type Area struct {
	Name string
	Lat  float64
	Lng  float64
}

// MetroManilaAreas is the built-in table used when no geocoder answers
var MetroManilaAreas = []Area{
	{"Quezon City", 14.60, 121.00},
	{"Manila", 14.58, 120.98},
	{"Makati", 14.55, 121.02},
	{"Pasay", 14.53, 121.00},
	{"Pasig", 14.56, 121.05},
	{"Taguig", 14.54, 121.04},
	{"Marikina", 14.62, 121.03},
	{"Parañaque", 14.47, 120.98},
	{"Mandaluyong", 14.52, 121.05},
}

// DefaultAreaRadius is roughly 5 km expressed in degrees
const DefaultAreaRadius = 0.05

// AreaApproximator labels a coordinate with the nearest known area.
// It never fails: outside every area it falls back to the raw coordinates.
type AreaApproximator struct {
	region string
	areas  []Area
	radius float64
}

// NewAreaApproximator creates an approximator over areas within region
func NewAreaApproximator(region string, areas []Area, radius float64) *AreaApproximator {
	if radius <= 0 {
		radius = DefaultAreaRadius
	}
	return &AreaApproximator{region: region, areas: areas, radius: radius}
}

// Name implements LabelStrategy
func (a *AreaApproximator) Name() string { return "approximate" }

// Resolve implements LabelStrategy
func (a *AreaApproximator) Resolve(_ context.Context, lat, lng float64) (string, error) {
	nearest := ""
	minDistance := math.Inf(1)
	for _, area := range a.areas {
		d := utils.EuclideanDegrees(lat, lng, area.Lat, area.Lng)
		if d < minDistance && d < a.radius {
			minDistance = d
			nearest = area.Name
		}
	}
	if nearest != "" {
		return fmt.Sprintf("Near %s, %s", nearest, a.region), nil
	}
	return CoordinateLabel(lat, lng), nil
}

// CoordinateLabel formats a coordinate with hemisphere suffixes
func CoordinateLabel(lat, lng float64) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns = "S"
	}
	if lng < 0 {
		ew = "W"
	}
	return fmt.Sprintf("Location at %.4f°%s, %.4f°%s", math.Abs(lat), ns, math.Abs(lng), ew)
}
