package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// Source implements storage.TimeSeriesSource over the stations and
// station_availability tables. Availability rows are LEFT JOINed with
// station metadata, so rows of unknown stations carry nil metadata.
type Source struct {
	pool     *Pool
	stations *StationStore
}

// NewSource creates a new Source.
func NewSource(pool *Pool) *Source {
	return &Source{pool: pool, stations: NewStationStore(pool)}
}

// Compile-time interface check.
var _ storage.TimeSeriesSource = (*Source)(nil)

const joinedColumns = `
	sa.station_id, sa.recorded_at, sa.num_bikes_available, sa.num_docks_available,
	sa.is_installed, sa.is_renting, sa.is_returning, sa.last_reported,
	s.name, s.lat, s.lon, s.capacity
`

// Stations returns station metadata ordered by station_id.
func (s *Source) Stations(ctx context.Context) ([]*domain.Station, error) {
	return s.stations.GetAll(ctx)
}

// TrainingRows returns joined rows recorded at or after since, ordered by recorded_at.
func (s *Source) TrainingRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	query := `
		SELECT ` + joinedColumns + `
		FROM station_availability sa
		LEFT JOIN stations s ON sa.station_id = s.station_id
		WHERE sa.recorded_at >= $1
		ORDER BY sa.recorded_at, sa.station_id
	`
	return s.queryRows(ctx, "training_rows", query, since)
}

// RecentRows returns joined rows recorded at or after since, ordered by
// station and time.
func (s *Source) RecentRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	query := `
		SELECT ` + joinedColumns + `
		FROM station_availability sa
		LEFT JOIN stations s ON sa.station_id = s.station_id
		WHERE sa.recorded_at >= $1
		ORDER BY sa.station_id, sa.recorded_at
	`
	return s.queryRows(ctx, "recent_rows", query, since)
}

// LatestPerStation returns the newest joined row of each station.
func (s *Source) LatestPerStation(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	query := `
		SELECT DISTINCT ON (sa.station_id) ` + joinedColumns + `
		FROM station_availability sa
		LEFT JOIN stations s ON sa.station_id = s.station_id
		WHERE sa.recorded_at >= $1
		ORDER BY sa.station_id, sa.recorded_at DESC
	`
	return s.queryRows(ctx, "latest_per_station", query, since)
}

func (s *Source) queryRows(ctx context.Context, operation, query string, since time.Time) (result []*domain.AvailabilityRecord, err error) {
	defer func(start time.Time) { observe(operation, start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", operation, err)
	}
	defer rows.Close()

	result, err = scanJoinedRows(rows)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", operation, err)
	}
	return result, nil
}

// scanJoinedRows scans availability rows with nullable station metadata.
func scanJoinedRows(rows pgx.Rows) ([]*domain.AvailabilityRecord, error) {
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
			&r.Name,
			&r.Lat,
			&r.Lon,
			&r.Capacity,
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
