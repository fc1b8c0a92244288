package memory

import (
	"context"
	"sort"
	"sync"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// PredictionStore is an in-memory implementation of storage.PredictionStore.
type PredictionStore struct {
	mu   sync.RWMutex
	data []*domain.Prediction // insertion order
}

// NewPredictionStore creates a new in-memory prediction store.
func NewPredictionStore() *PredictionStore {
	return &PredictionStore{}
}

// InsertBulk adds predictions of one inference run.
func (s *PredictionStore) InsertBulk(_ context.Context, predictions []*domain.Prediction) error {
	for _, p := range predictions {
		if p == nil || p.StationID == "" || p.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range predictions {
		predCopy := *p
		s.data = append(s.data, &predCopy)
	}
	return nil
}

// GetByRunID retrieves predictions of a run ordered by station_id.
func (s *PredictionStore) GetByRunID(_ context.Context, runID string) ([]*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Prediction
	for _, p := range s.data {
		if p.RunID == runID {
			predCopy := *p
			result = append(result, &predCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StationID < result[j].StationID
	})
	return result, nil
}

// GetLatest retrieves the newest prediction of a station. Returns ErrNotFound if none.
func (s *PredictionStore) GetLatest(_ context.Context, stationID string) (*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Prediction
	for _, p := range s.data {
		if p.StationID != stationID {
			continue
		}
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	predCopy := *latest
	return &predCopy, nil
}

var _ storage.PredictionStore = (*PredictionStore)(nil)
