package domain

import "errors"

// Validation errors for domain records.
var (
	ErrMissingStationID  = errors.New("station id is required")
	ErrMissingRecordedAt = errors.New("recorded_at is required")
	ErrNegativeCount     = errors.New("availability counts cannot be negative")
	ErrUnknownClass      = errors.New("unknown availability class")
)
