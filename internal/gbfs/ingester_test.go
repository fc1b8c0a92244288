package gbfs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-forecast-lab/internal/storage"
	"station-forecast-lab/internal/storage/memory"
)

var t0 = time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)

// staticFetcher returns a fixed snapshot.
type staticFetcher struct {
	snap *Snapshot
	err  error
}

func (f *staticFetcher) FetchSnapshot(context.Context) (*Snapshot, error) {
	return f.snap, f.err
}

func snapshot(lastUpdated time.Time) *Snapshot {
	return &Snapshot{
		LastUpdated: lastUpdated,
		Stations: []StationInfo{
			{StationID: "a", Name: "Alpha", Lat: 41.88, Lon: -87.63, Capacity: 15},
			{StationID: "", Name: "nameless"},
		},
		Statuses: []StationStatus{
			{StationID: "a", NumBikesAvailable: 4, NumDocksAvailable: 11, IsInstalled: 1, IsRenting: 1, IsReturning: 1},
			{StationID: "b", NumBikesAvailable: 2, NumDocksAvailable: 3, IsInstalled: 1},
			{StationID: "a", NumBikesAvailable: 5, NumDocksAvailable: 10, IsInstalled: 1, IsRenting: 1, IsReturning: 1},
			{StationID: "c", NumBikesAvailable: -1},
		},
	}
}

type fixture struct {
	fetcher      *staticFetcher
	stations     *memory.StationStore
	availability *memory.AvailabilityStore
	progress     *memory.IngestProgressStore
	now          time.Time
	ingester     *Ingester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:      &staticFetcher{snap: snapshot(t0)},
		stations:     memory.NewStationStore(),
		availability: memory.NewAvailabilityStore(),
		progress:     memory.NewIngestProgressStore(),
		now:          t0.Add(7 * time.Minute),
	}
	in, err := NewIngester(IngesterOptions{
		Fetcher:      f.fetcher,
		Stations:     f.stations,
		Availability: f.availability,
		Progress:     f.progress,
		Clock:        func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.ingester = in
	return f
}

func TestIngest_WritesSlotAlignedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ingester.Ingest(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, t0, res.Slot)
	assert.Equal(t, 1, res.Stations)
	assert.Equal(t, 2, res.Rows)

	st, err := f.stations.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 15, st.Capacity)

	rows, err := f.availability.GetByTimeRange(ctx, "a", t0, t0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].NumBikesAvailable, "repeated station keeps its last entry")

	p, err := f.progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0, p.LastUpdated)
	assert.Equal(t, int64(2), p.Rows)
}

func TestIngest_SkipsUnchangedFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ingester.Ingest(ctx)
	require.NoError(t, err)

	f.now = f.now.Add(15 * time.Minute)
	res, err := f.ingester.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feed_unchanged", res.Skipped)

	f.fetcher.snap = snapshot(t0.Add(15 * time.Minute))
	res, err = f.ingester.Ingest(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, t0.Add(15*time.Minute), res.Slot)

	p, err := f.progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Rows)
}

func TestIngest_SameSlotTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ingester.Ingest(ctx)
	require.NoError(t, err)

	f.fetcher.snap = snapshot(t0.Add(time.Minute))
	f.now = f.now.Add(time.Minute)
	res, err := f.ingester.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "slot_already_ingested", res.Skipped)
}

func TestIngest_FetchError(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = errors.New("feed down")

	_, err := f.ingester.Ingest(context.Background())
	assert.Error(t, err)

	_, err = f.progress.GetLastProcessed(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.ingester.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := f.progress.GetLastProcessed(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestNewIngester_RequiresStores(t *testing.T) {
	_, err := NewIngester(IngesterOptions{})
	assert.Error(t, err)
}
