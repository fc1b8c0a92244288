package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// AvailabilityStore is an in-memory implementation of storage.AvailabilityStore.
type AvailabilityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AvailabilityRecord // keyed by (station_id, recorded_at)
}

// NewAvailabilityStore creates a new in-memory availability store.
func NewAvailabilityStore() *AvailabilityStore {
	return &AvailabilityStore{
		data: make(map[string]*domain.AvailabilityRecord),
	}
}

// availabilityKey generates a unique key for a row.
func availabilityKey(stationID string, recordedAt time.Time) string {
	return fmt.Sprintf("%s|%d", stationID, recordedAt.UnixNano())
}

// Insert adds a row. Returns ErrDuplicateKey if exists.
func (s *AvailabilityStore) Insert(_ context.Context, r *domain.AvailabilityRecord) error {
	if r == nil || r.Validate() != nil {
		return storage.ErrInvalidInput
	}

	key := availabilityKey(r.StationID, r.RecordedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.DuplicateRow(r.StationID, r.RecordedAt)
	}

	s.data[key] = stripMetadata(r)
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *AvailabilityStore) InsertBulk(_ context.Context, records []*domain.AvailabilityRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range records {
		if r == nil || r.Validate() != nil {
			return storage.ErrInvalidInput
		}
		key := availabilityKey(r.StationID, r.RecordedAt)
		_, stored := s.data[key]
		_, batched := batchKeys[key]
		if stored || batched {
			return storage.DuplicateRow(r.StationID, r.RecordedAt)
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		s.data[availabilityKey(r.StationID, r.RecordedAt)] = stripMetadata(r)
	}
	return nil
}

// GetByTimeRange retrieves rows of a station within [start, end] (inclusive).
func (s *AvailabilityStore) GetByTimeRange(_ context.Context, stationID string, start, end time.Time) ([]*domain.AvailabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AvailabilityRecord
	for _, r := range s.data {
		if r.StationID == stationID && !r.RecordedAt.Before(start) && !r.RecordedAt.After(end) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})
	return result, nil
}

// since returns copies of rows recorded at or after t.
func (s *AvailabilityStore) since(t time.Time) []*domain.AvailabilityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AvailabilityRecord
	for _, r := range s.data {
		if !r.RecordedAt.Before(t) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}
	return result
}

// stripMetadata copies the row without joined station fields.
// Metadata lives in the station store.
func stripMetadata(r *domain.AvailabilityRecord) *domain.AvailabilityRecord {
	rowCopy := *r
	rowCopy.Name = nil
	rowCopy.Lat = nil
	rowCopy.Lon = nil
	rowCopy.Capacity = nil
	return &rowCopy
}

var _ storage.AvailabilityStore = (*AvailabilityStore)(nil)
