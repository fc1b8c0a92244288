package memory

import (
	"context"
	"sort"
	"time"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// Source joins the in-memory station and availability stores into a
// storage.TimeSeriesSource. Rows of unknown stations are returned without
// metadata.
type Source struct {
	stations     *StationStore
	availability *AvailabilityStore
}

// NewSource creates a source over the given stores.
func NewSource(stations *StationStore, availability *AvailabilityStore) *Source {
	return &Source{stations: stations, availability: availability}
}

// Stations returns station metadata ordered by station_id.
func (s *Source) Stations(ctx context.Context) ([]*domain.Station, error) {
	return s.stations.GetAll(ctx)
}

// TrainingRows returns joined rows recorded at or after since, ordered by recorded_at.
func (s *Source) TrainingRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	rows, err := s.joined(ctx, since)
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].RecordedAt.Equal(rows[j].RecordedAt) {
			return rows[i].RecordedAt.Before(rows[j].RecordedAt)
		}
		return rows[i].StationID < rows[j].StationID
	})
	return rows, nil
}

// RecentRows returns joined rows recorded at or after since, ordered by station and time.
func (s *Source) RecentRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	rows, err := s.joined(ctx, since)
	if err != nil {
		return nil, err
	}
	sortByStationTime(rows)
	return rows, nil
}

// LatestPerStation returns the newest joined row of each station.
func (s *Source) LatestPerStation(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	rows, err := s.joined(ctx, since)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*domain.AvailabilityRecord)
	for _, r := range rows {
		if cur, ok := latest[r.StationID]; !ok || r.RecordedAt.After(cur.RecordedAt) {
			latest[r.StationID] = r
		}
	}
	result := make([]*domain.AvailabilityRecord, 0, len(latest))
	for _, r := range latest {
		result = append(result, r)
	}
	sortByStationTime(result)
	return result, nil
}

func (s *Source) joined(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	stations, err := s.stations.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Station, len(stations))
	for _, st := range stations {
		byID[st.StationID] = st
	}

	rows := s.availability.since(since)
	for _, r := range rows {
		st, ok := byID[r.StationID]
		if !ok {
			continue
		}
		name, lat, lon, capacity := st.Name, st.Lat, st.Lon, st.Capacity
		r.Name = &name
		r.Lat = &lat
		r.Lon = &lon
		r.Capacity = &capacity
	}
	return rows, nil
}

func sortByStationTime(rows []*domain.AvailabilityRecord) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StationID != rows[j].StationID {
			return rows[i].StationID < rows[j].StationID
		}
		return rows[i].RecordedAt.Before(rows[j].RecordedAt)
	})
}

var _ storage.TimeSeriesSource = (*Source)(nil)
