package storage

import (
	"errors"
	"fmt"
	"time"
)

// Storage errors shared by the memory, postgres, clickhouse and localfile
// backends. Backends wrap them with context; match with errors.Is.
var (
	// ErrNotFound is returned when a station, prediction or ingest cursor
	// is absent, or when a local export file is missing.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a station already has an
	// availability row for the slot. Availability history is append-only.
	ErrDuplicateKey = errors.New("availability already recorded for station and slot")

	// ErrInvalidInput is returned when a record fails validation before
	// reaching the backend, or the backend rejects it on a constraint.
	ErrInvalidInput = errors.New("invalid input")
)

// DuplicateRow reports the (station_id, recorded_at) key that collided.
func DuplicateRow(stationID string, recordedAt time.Time) error {
	return fmt.Errorf("%w: station %s at %s", ErrDuplicateKey, stationID, recordedAt.UTC().Format(time.RFC3339))
}
