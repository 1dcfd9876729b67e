package domain

import "errors"

var (
	// ErrInvalidReport is returned for reports missing required fields
	ErrInvalidReport = errors.New("invalid location report")
	// ErrInvalidCoordinates is returned for latitude/longitude out of range
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrEntityNotFound is returned when an entity is not live
	ErrEntityNotFound = errors.New("entity not found")
	// ErrNoResult is returned by a geocoder that has no answer for a coordinate
	ErrNoResult = errors.New("no geocoding result")
)
