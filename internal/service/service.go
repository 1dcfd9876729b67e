package service

import (
	"github.com/smartcity/fleet-tracker/internal/domain"
)

// DataRepository is re-exported from domain for convenience
type DataRepository = domain.TrackRepository
