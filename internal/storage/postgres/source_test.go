package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

func seedSource(t *testing.T, ctx context.Context, pool *Pool) *Source {
	t.Helper()

	require.NoError(t, NewStationStore(pool).UpsertBulk(ctx, []*domain.Station{
		{StationID: "a", Name: "Alpha", Lat: 41.88, Lon: -87.63, Capacity: 15},
	}))
	require.NoError(t, NewAvailabilityStore(pool).InsertBulk(ctx, []*domain.AvailabilityRecord{
		row("b", 0, 1),
		row("a", 15*time.Minute, 2),
		row("a", 0, 3),
		row("b", 15*time.Minute, 4),
		row("a", -24*time.Hour, 5),
	}))
	return NewSource(pool)
}

func TestSource_TrainingRowsOrderedByTime(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	src := seedSource(t, ctx, pool)

	rows, err := src.TrainingRows(ctx, t0)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	var got []string
	for _, r := range rows {
		got = append(got, r.StationID)
	}
	assert.Equal(t, []string{"a", "b", "a", "b"}, got)
	assert.Equal(t, t0, rows[0].RecordedAt)

	require.NotNil(t, rows[0].Capacity)
	assert.Equal(t, 15, *rows[0].Capacity)
	assert.Equal(t, "Alpha", *rows[0].Name)
	assert.Nil(t, rows[1].Capacity, "unknown station has no metadata")
	assert.Nil(t, rows[1].Name)
}

func TestSource_RecentRowsOrderedByStation(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	src := seedSource(t, ctx, pool)

	rows, err := src.RecentRows(ctx, t0)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "a", rows[0].StationID)
	assert.Equal(t, 3, rows[0].NumBikesAvailable)
	assert.Equal(t, 2, rows[1].NumBikesAvailable)
	assert.Equal(t, "b", rows[2].StationID)
}

func TestSource_LatestPerStation(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	src := seedSource(t, ctx, pool)

	rows, err := src.LatestPerStation(ctx, t0.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].StationID)
	assert.Equal(t, 2, rows[0].NumBikesAvailable)
	assert.Equal(t, "b", rows[1].StationID)
	assert.Equal(t, 4, rows[1].NumBikesAvailable)
}

func TestSource_Stations(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	src := NewSource(pool)

	stations, err := src.Stations(ctx)
	require.NoError(t, err)
	assert.Empty(t, stations)

	seedSource(t, ctx, pool)
	stations, err = src.Stations(ctx)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.InDelta(t, -87.63, stations[0].Lon, 1e-9)
}

func TestIngestProgressStore(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewIngestProgressStore(pool)

	_, err := store.GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetLastProcessed(ctx, &storage.IngestProgress{LastUpdated: t0, Rows: 10}))
	require.NoError(t, store.SetLastProcessed(ctx, &storage.IngestProgress{LastUpdated: t0.Add(time.Minute), Rows: 25}))

	got, err := store.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), got.LastUpdated)
	assert.Equal(t, int64(25), got.Rows)

	assert.ErrorIs(t, store.SetLastProcessed(ctx, nil), storage.ErrInvalidInput)
}
