package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// AvailabilityStore implements storage.AvailabilityStore using PostgreSQL.
type AvailabilityStore struct {
	pool *Pool
}

// NewAvailabilityStore creates a new AvailabilityStore.
func NewAvailabilityStore(pool *Pool) *AvailabilityStore {
	return &AvailabilityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AvailabilityStore = (*AvailabilityStore)(nil)

const insertAvailabilityQuery = `
	INSERT INTO station_availability (
		station_id, recorded_at, num_bikes_available, num_docks_available,
		is_installed, is_renting, is_returning, last_reported
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Insert adds a row. Returns ErrDuplicateKey if (station_id, recorded_at) exists.
func (s *AvailabilityStore) Insert(ctx context.Context, r *domain.AvailabilityRecord) (err error) {
	if r == nil {
		return storage.ErrInvalidInput
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	defer func(start time.Time) { observe("insert_availability", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, insertAvailabilityQuery, availabilityArgs(r)...)
	if err != nil {
		return fmt.Errorf("insert availability %s at %s: %w",
			r.StationID, r.RecordedAt.UTC().Format(time.RFC3339), translateError(err))
	}
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *AvailabilityStore) InsertBulk(ctx context.Context, records []*domain.AvailabilityRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}
	defer func(start time.Time) { observe("insert_availability_bulk", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertAvailabilityQuery, availabilityArgs(r)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert %d availability rows: %w", len(records), translateError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves rows of a station within [start, end] (inclusive),
// ordered by recorded_at ASC.
func (s *AvailabilityStore) GetByTimeRange(ctx context.Context, stationID string, start, end time.Time) ([]*domain.AvailabilityRecord, error) {
	query := `
		SELECT station_id, recorded_at, num_bikes_available, num_docks_available,
		       is_installed, is_renting, is_returning, last_reported
		FROM station_availability
		WHERE station_id = $1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at ASC
	`

	rows, err := s.pool.Query(ctx, query, stationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get availability by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.AvailabilityRecord
	for rows.Next() {
		var r domain.AvailabilityRecord
		if err := rows.Scan(
			&r.StationID,
			&r.RecordedAt,
			&r.NumBikesAvailable,
			&r.NumDocksAvailable,
			&r.IsInstalled,
			&r.IsRenting,
			&r.IsReturning,
			&r.LastReported,
		); err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		r.RecordedAt = r.RecordedAt.UTC()
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability rows: %w", err)
	}
	return result, nil
}

func availabilityArgs(r *domain.AvailabilityRecord) []any {
	return []any{
		r.StationID,
		r.RecordedAt.UTC(),
		r.NumBikesAvailable,
		r.NumDocksAvailable,
		r.IsInstalled,
		r.IsRenting,
		r.IsReturning,
		r.LastReported,
	}
}
