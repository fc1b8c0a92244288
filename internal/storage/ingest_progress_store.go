package storage

import (
	"context"
	"time"
)

// IngestProgress records the last feed snapshot written to storage.
type IngestProgress struct {
	LastUpdated time.Time // GBFS last_updated of the newest ingested status feed
	Rows        int64     // total rows written so far
}

// IngestProgressStore persists ingest state.
// This lets ingest restart without writing the same feed snapshot twice.
type IngestProgressStore interface {
	// GetLastProcessed returns the last ingested snapshot.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*IngestProgress, error)

	// SetLastProcessed saves the last ingested snapshot.
	SetLastProcessed(ctx context.Context, progress *IngestProgress) error
}
