package gbfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/observability"
	"station-forecast-lab/internal/storage"
)

// DefaultInterval is the polling cadence and the recorded_at grid.
const DefaultInterval = 15 * time.Minute

// Fetcher returns the current feed snapshot.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// IngesterOptions configures an Ingester.
type IngesterOptions struct {
	Fetcher      Fetcher
	Stations     storage.StationStore
	Availability storage.AvailabilityStore
	Progress     storage.IngestProgressStore // nil disables unchanged-feed detection
	Interval     time.Duration               // DefaultInterval when zero
	Logger       *zap.Logger
	Clock        func() time.Time
}

// Ingester writes feed snapshots to the stores. Availability rows are
// stamped at the start of their polling slot so that rows one horizon apart
// share exact timestamps.
type Ingester struct {
	fetcher      Fetcher
	stations     storage.StationStore
	availability storage.AvailabilityStore
	progress     storage.IngestProgressStore
	interval     time.Duration
	log          *zap.Logger
	now          func() time.Time
}

// CycleResult describes one ingest cycle.
type CycleResult struct {
	Slot     time.Time
	Stations int
	Rows     int
	Skipped  string // reason the snapshot was not written, empty when written
}

// NewIngester creates an Ingester.
func NewIngester(opts IngesterOptions) (*Ingester, error) {
	if opts.Fetcher == nil || opts.Stations == nil || opts.Availability == nil {
		return nil, errors.New("ingester requires a fetcher, a station store and an availability store")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Ingester{
		fetcher:      opts.Fetcher,
		stations:     opts.Stations,
		availability: opts.Availability,
		progress:     opts.Progress,
		interval:     opts.Interval,
		log:          opts.Logger.Named("ingest"),
		now:          opts.Clock,
	}, nil
}

// Run ingests immediately and then on every interval until ctx is canceled.
// Cycle errors are logged and do not stop the loop.
func (in *Ingester) Run(ctx context.Context) error {
	in.log.Info("ingest_started", zap.Duration("interval", in.interval))

	ticker := time.NewTicker(in.interval)
	defer ticker.Stop()

	for {
		if _, err := in.Ingest(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			in.log.Error("ingest_cycle_failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			in.log.Info("ingest_stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Ingest runs one cycle.
func (in *Ingester) Ingest(ctx context.Context) (*CycleResult, error) {
	slot := in.now().UTC().Truncate(in.interval)
	res := &CycleResult{Slot: slot}

	snap, err := in.fetcher.FetchSnapshot(ctx)
	if err != nil {
		observability.RecordIngestError("fetch")
		return nil, err
	}

	var prev *storage.IngestProgress
	if in.progress != nil {
		prev, err = in.progress.GetLastProcessed(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			observability.RecordIngestError("progress")
			return nil, fmt.Errorf("get ingest progress: %w", err)
		}
		if prev != nil && !snap.LastUpdated.IsZero() && !snap.LastUpdated.After(prev.LastUpdated) {
			res.Skipped = "feed_unchanged"
			in.log.Info("feed_unchanged", zap.Time("last_updated", snap.LastUpdated))
			return res, nil
		}
	}

	stations := make([]*domain.Station, 0, len(snap.Stations))
	for _, s := range snap.Stations {
		if s.StationID == "" {
			continue
		}
		stations = append(stations, s.Station())
	}
	if len(stations) > 0 {
		if err := in.stations.UpsertBulk(ctx, stations); err != nil {
			observability.RecordIngestError("stations")
			return nil, fmt.Errorf("store stations: %w", err)
		}
	}
	res.Stations = len(stations)

	// one row per station and slot; a repeated station keeps its last entry
	records := make([]*domain.AvailabilityRecord, 0, len(snap.Statuses))
	seen := make(map[string]int, len(snap.Statuses))
	for _, s := range snap.Statuses {
		if s.StationID == "" || s.NumBikesAvailable < 0 || s.NumDocksAvailable < 0 {
			in.log.Warn("skipping_invalid_status", zap.String("station_id", s.StationID))
			continue
		}
		if i, ok := seen[s.StationID]; ok {
			records[i] = s.Record(slot)
			continue
		}
		seen[s.StationID] = len(records)
		records = append(records, s.Record(slot))
	}

	if len(records) > 0 {
		err := in.availability.InsertBulk(ctx, records)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			res.Skipped = "slot_already_ingested"
			in.log.Info("slot_already_ingested", zap.Time("slot", slot))
			return res, nil
		case err != nil:
			observability.RecordIngestError("availability")
			return nil, fmt.Errorf("store availability: %w", err)
		}
	}
	res.Rows = len(records)

	if in.progress != nil {
		total := int64(res.Rows)
		if prev != nil {
			total += prev.Rows
		}
		if err := in.progress.SetLastProcessed(ctx, &storage.IngestProgress{LastUpdated: snap.LastUpdated, Rows: total}); err != nil {
			in.log.Warn("ingest_progress_write_failed", zap.Error(err))
		}
	}

	observability.RecordIngest(res.Stations, res.Rows)
	in.log.Info("ingest_cycle_complete",
		zap.Time("slot", slot),
		zap.Int("stations", res.Stations),
		zap.Int("rows", res.Rows),
	)
	return res, nil
}
