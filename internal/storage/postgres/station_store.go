package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// StationStore implements storage.StationStore using PostgreSQL.
type StationStore struct {
	pool *Pool
}

// NewStationStore creates a new StationStore.
func NewStationStore(pool *Pool) *StationStore {
	return &StationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StationStore = (*StationStore)(nil)

const upsertStationQuery = `
	INSERT INTO stations (station_id, name, lat, lon, capacity, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (station_id) DO UPDATE
	SET name = EXCLUDED.name,
	    lat = EXCLUDED.lat,
	    lon = EXCLUDED.lon,
	    capacity = EXCLUDED.capacity,
	    updated_at = EXCLUDED.updated_at
`

// Upsert inserts or replaces station metadata.
func (s *StationStore) Upsert(ctx context.Context, st *domain.Station) (err error) {
	if st == nil || st.StationID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("upsert_station", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, upsertStationQuery, stationArgs(st)...)
	if err != nil {
		return fmt.Errorf("upsert station: %w", err)
	}
	return nil
}

// UpsertBulk inserts or replaces multiple stations atomically.
func (s *StationStore) UpsertBulk(ctx context.Context, stations []*domain.Station) (err error) {
	if len(stations) == 0 {
		return nil
	}
	for _, st := range stations {
		if st == nil || st.StationID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("upsert_stations", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, st := range stations {
		batch.Queue(upsertStationQuery, stationArgs(st)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert stations in bulk: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a station. Returns ErrNotFound if not exists.
func (s *StationStore) GetByID(ctx context.Context, stationID string) (*domain.Station, error) {
	query := `
		SELECT station_id, name, lat, lon, capacity, updated_at
		FROM stations
		WHERE station_id = $1
	`

	st, err := scanStation(s.pool.QueryRow(ctx, query, stationID))
	if err != nil {
		return nil, fmt.Errorf("get station %s: %w", stationID, translateError(err))
	}
	return st, nil
}

// GetAll retrieves all stations ordered by station_id.
func (s *StationStore) GetAll(ctx context.Context) (result []*domain.Station, err error) {
	defer func(start time.Time) { observe("get_stations", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT station_id, name, lat, lon, capacity, updated_at
		FROM stations
		ORDER BY station_id
	`)
	if err != nil {
		return nil, fmt.Errorf("get stations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan station row: %w", err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate station rows: %w", err)
	}
	return result, nil
}

func stationArgs(st *domain.Station) []any {
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return []any{st.StationID, st.Name, st.Lat, st.Lon, st.Capacity, updatedAt}
}

// scanStation scans a single row into Station.
func scanStation(row pgx.Row) (*domain.Station, error) {
	var st domain.Station
	if err := row.Scan(
		&st.StationID,
		&st.Name,
		&st.Lat,
		&st.Lon,
		&st.Capacity,
		&st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &st, nil
}
