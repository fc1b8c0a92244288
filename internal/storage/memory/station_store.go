package memory

import (
	"context"
	"sort"
	"sync"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// StationStore is an in-memory implementation of storage.StationStore.
type StationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Station // keyed by station_id
}

// NewStationStore creates a new in-memory station store.
func NewStationStore() *StationStore {
	return &StationStore{
		data: make(map[string]*domain.Station),
	}
}

// Upsert inserts or replaces station metadata.
func (s *StationStore) Upsert(_ context.Context, st *domain.Station) error {
	if st == nil || st.StationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stationCopy := *st
	s.data[st.StationID] = &stationCopy
	return nil
}

// UpsertBulk inserts or replaces multiple stations atomically.
func (s *StationStore) UpsertBulk(_ context.Context, stations []*domain.Station) error {
	for _, st := range stations {
		if st == nil || st.StationID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range stations {
		stationCopy := *st
		s.data[st.StationID] = &stationCopy
	}
	return nil
}

// GetByID retrieves a station. Returns ErrNotFound if not exists.
func (s *StationStore) GetByID(_ context.Context, stationID string) (*domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.data[stationID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	stationCopy := *st
	return &stationCopy, nil
}

// GetAll retrieves all stations ordered by station_id.
func (s *StationStore) GetAll(_ context.Context) ([]*domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Station, 0, len(s.data))
	for _, st := range s.data {
		stationCopy := *st
		result = append(result, &stationCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StationID < result[j].StationID
	})
	return result, nil
}

var _ storage.StationStore = (*StationStore)(nil)
