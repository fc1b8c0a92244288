package storage

import (
	"context"
	"time"

	"station-forecast-lab/internal/domain"
)

// TimeSeriesSource is the read side consumed by the preprocessing pipeline.
// Rows returned by the row queries carry joined station metadata.
type TimeSeriesSource interface {
	// Stations returns station metadata ordered by station_id.
	// An empty slice means no metadata is available.
	Stations(ctx context.Context) ([]*domain.Station, error)

	// TrainingRows returns rows recorded at or after since, ordered by recorded_at ASC.
	TrainingRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error)

	// RecentRows returns rows recorded at or after since, ordered by (station_id, recorded_at).
	RecentRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error)

	// LatestPerStation returns the most recent row of each station recorded at or after since.
	LatestPerStation(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error)
}

// StationStore provides access to stations storage.
type StationStore interface {
	// Upsert inserts or replaces station metadata.
	Upsert(ctx context.Context, s *domain.Station) error

	// UpsertBulk inserts or replaces multiple stations atomically.
	UpsertBulk(ctx context.Context, stations []*domain.Station) error

	// GetByID retrieves a station. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, stationID string) (*domain.Station, error)

	// GetAll retrieves all stations ordered by station_id.
	GetAll(ctx context.Context) ([]*domain.Station, error)
}

// AvailabilityStore provides access to station_availability storage.
type AvailabilityStore interface {
	// Insert adds a row. Returns ErrDuplicateKey if (station_id, recorded_at) exists.
	Insert(ctx context.Context, r *domain.AvailabilityRecord) error

	// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.AvailabilityRecord) error

	// GetByTimeRange retrieves rows of a station within [start, end] (inclusive),
	// ordered by recorded_at ASC. Metadata fields are left nil.
	GetByTimeRange(ctx context.Context, stationID string, start, end time.Time) ([]*domain.AvailabilityRecord, error)
}

// PredictionStore provides access to predictions storage.
type PredictionStore interface {
	// InsertBulk adds predictions of one inference run.
	InsertBulk(ctx context.Context, predictions []*domain.Prediction) error

	// GetByRunID retrieves predictions of a run ordered by station_id.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Prediction, error)

	// GetLatest retrieves the newest prediction of a station. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, stationID string) (*domain.Prediction, error)
}
