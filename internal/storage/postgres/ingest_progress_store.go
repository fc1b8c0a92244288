package postgres

import (
	"context"
	"fmt"

	"station-forecast-lab/internal/storage"
)

// IngestProgressStore is a PostgreSQL implementation of storage.IngestProgressStore.
// State lives in the single-row ingest_progress table.
type IngestProgressStore struct {
	pool *Pool
}

// NewIngestProgressStore creates a new PostgreSQL ingest progress store.
func NewIngestProgressStore(pool *Pool) *IngestProgressStore {
	return &IngestProgressStore{pool: pool}
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)

// GetLastProcessed returns the last ingested snapshot.
func (s *IngestProgressStore) GetLastProcessed(ctx context.Context) (*storage.IngestProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT last_updated, rows_written
		FROM ingest_progress
		WHERE id = 1
	`)

	var progress storage.IngestProgress
	err := row.Scan(&progress.LastUpdated, &progress.Rows)
	if err != nil {
		return nil, fmt.Errorf("get ingest progress: %w", translateError(err))
	}
	progress.LastUpdated = progress.LastUpdated.UTC()

	return &progress, nil
}

// SetLastProcessed saves the last ingested snapshot.
// Uses upsert to handle initial insert and subsequent updates.
func (s *IngestProgressStore) SetLastProcessed(ctx context.Context, progress *storage.IngestProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_progress (id, last_updated, rows_written, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET last_updated = EXCLUDED.last_updated,
		    rows_written = EXCLUDED.rows_written,
		    updated_at = NOW()
	`, progress.LastUpdated.UTC(), progress.Rows)
	if err != nil {
		return fmt.Errorf("set ingest progress: %w", translateError(err))
	}
	return nil
}
