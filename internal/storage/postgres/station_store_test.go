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

func TestStationStore_UpsertAndGet(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewStationStore(pool)
	updated := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	st := &domain.Station{StationID: "s1", Name: "Clark & Lake", Lat: 41.886, Lon: -87.631, Capacity: 23, UpdatedAt: updated}
	require.NoError(t, store.Upsert(ctx, st))

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Clark & Lake", got.Name)
	assert.InDelta(t, 41.886, got.Lat, 1e-9)
	assert.Equal(t, 23, got.Capacity)
	assert.True(t, updated.Equal(got.UpdatedAt))

	st.Capacity = 31
	require.NoError(t, store.Upsert(ctx, st))
	got, err = store.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 31, got.Capacity)
}

func TestStationStore_GetByIDNotFound(t *testing.T) {
	pool := setupTestDB(t)

	_, err := NewStationStore(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStationStore_UpsertBulkOrdered(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewStationStore(pool)

	err := store.UpsertBulk(ctx, []*domain.Station{
		{StationID: "c", Name: "C", Capacity: 10},
		{StationID: "a", Name: "A", Capacity: 15},
		{StationID: "b", Name: "B", Capacity: 0},
	})
	require.NoError(t, err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].StationID)
	assert.Equal(t, "b", all[1].StationID)
	assert.Equal(t, "c", all[2].StationID)
	assert.Equal(t, 0, all[1].Capacity, "store keeps raw capacity")
}

func TestStationStore_InvalidInput(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewStationStore(pool)

	assert.ErrorIs(t, store.Upsert(ctx, &domain.Station{}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.UpsertBulk(ctx, []*domain.Station{{StationID: "a"}, nil}), storage.ErrInvalidInput)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
