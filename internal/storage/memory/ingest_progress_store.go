package memory

import (
	"context"
	"sync"

	"station-forecast-lab/internal/storage"
)

// IngestProgressStore is an in-memory implementation of storage.IngestProgressStore.
type IngestProgressStore struct {
	mu       sync.RWMutex
	progress *storage.IngestProgress
}

// NewIngestProgressStore creates a new in-memory ingest progress store.
func NewIngestProgressStore() *IngestProgressStore {
	return &IngestProgressStore{}
}

// GetLastProcessed returns the last ingested snapshot.
func (s *IngestProgressStore) GetLastProcessed(_ context.Context) (*storage.IngestProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}

	progressCopy := *s.progress
	return &progressCopy, nil
}

// SetLastProcessed saves the last ingested snapshot.
func (s *IngestProgressStore) SetLastProcessed(_ context.Context, progress *storage.IngestProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	progressCopy := *progress
	s.progress = &progressCopy
	return nil
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)
