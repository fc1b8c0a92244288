package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

func TestPredictionStore_RunAndLatest(t *testing.T) {
	store := NewPredictionStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Prediction{
		{RunID: "r1", StationID: "b", PredictedAvailabilityClass: domain.ClassRed, CreatedAt: t0},
		{RunID: "r1", StationID: "a", PredictedAvailabilityClass: domain.ClassGreen, CreatedAt: t0},
	}))
	require.NoError(t, store.InsertBulk(ctx, []*domain.Prediction{
		{RunID: "r2", StationID: "a", PredictedAvailabilityClass: domain.ClassYellow, CreatedAt: t0.Add(time.Hour)},
	}))

	run, err := store.GetByRunID(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, "a", run[0].StationID)

	latest, err := store.GetLatest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.RunID)

	_, err = store.GetLatest(ctx, "zzz")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestPredictionStore_InvalidInput(t *testing.T) {
	err := NewPredictionStore().InsertBulk(context.Background(), []*domain.Prediction{{StationID: "a"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestIngestProgressStore(t *testing.T) {
	store := NewIngestProgressStore()
	ctx := context.Background()

	_, err := store.GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetLastProcessed(ctx, &storage.IngestProgress{LastUpdated: t0, Rows: 10}))
	got, err := store.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Rows)
	assert.Equal(t, t0, got.LastUpdated)
}
