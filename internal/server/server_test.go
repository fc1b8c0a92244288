package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-forecast-lab/internal/cache"
	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/predictor"
)

var t0 = time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeInferencer counts calls and returns fixed predictions.
type fakeInferencer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeInferencer) RunInference(context.Context) ([]*domain.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []*domain.Prediction{
		{StationID: "a", PredictedAvailabilityClass: domain.ClassGreen, AvailabilityPrediction: "green",
			ConfidenceGreen: 0.8, ConfidenceYellow: 0.15, ConfidenceRed: 0.05,
			PredictionTime: t0.Add(6 * time.Hour), HorizonHours: 6},
		{StationID: "b", PredictedAvailabilityClass: domain.ClassRed, AvailabilityPrediction: "red",
			ConfidenceRed: 0.9, ConfidenceYellow: 0.1,
			PredictionTime: t0.Add(6 * time.Hour), HorizonHours: 6},
	}, nil
}

func (f *fakeInferencer) Info() predictor.Info {
	return predictor.Info{Dir: "models/gbt_model_x", RunID: "train-1", FeatureCount: 30, Version: "2.0"}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestPredict_CachesResult(t *testing.T) {
	now := t0
	clock := func() time.Time { return now }
	inf := &fakeInferencer{}
	s := New(Options{
		Predictor: inf,
		Cache:     cache.NewMemory(15 * time.Minute).WithClock(clock),
		Clock:     clock,
	})
	r := s.Router()

	w := do(t, r, http.MethodPost, "/predict")
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[PredictResponse](t, w)
	assert.False(t, first.Cached)
	assert.Equal(t, 2, first.Count)
	assert.Equal(t, "green", first.Predictions[0].AvailabilityPrediction)
	assert.Equal(t, 2, first.Predictions[1].PredictedAvailabilityClass)
	assert.True(t, first.Timestamp.Equal(t0))

	now = t0.Add(10 * time.Minute)
	second := decode[PredictResponse](t, do(t, r, http.MethodPost, "/predict"))
	assert.True(t, second.Cached)
	assert.Equal(t, 1, inf.calls)
	assert.True(t, second.Timestamp.Equal(t0))

	now = t0.Add(16 * time.Minute)
	third := decode[PredictResponse](t, do(t, r, http.MethodPost, "/predict"))
	assert.False(t, third.Cached)
	assert.Equal(t, 2, inf.calls)
}

func TestPredict_ConcurrentMissesRunOnce(t *testing.T) {
	inf := &fakeInferencer{}
	r := New(Options{Predictor: inf}).Router()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := do(t, r, http.MethodPost, "/predict")
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inf.calls)
}

func TestPredict_Failure(t *testing.T) {
	inf := &fakeInferencer{err: errors.New("no recent data")}
	s := New(Options{Predictor: inf})
	r := s.Router()

	w := do(t, r, http.MethodPost, "/predict")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "no recent data")

	st := decode[StatusResponse](t, do(t, r, http.MethodGet, "/status"))
	assert.Equal(t, StatusFailed, st.PredictionStatus)
	assert.Nil(t, st.LastPredictionTime)
}

func TestPredict_NoPredictor(t *testing.T) {
	r := New(Options{}).Router()
	w := do(t, r, http.MethodPost, "/predict")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	w := do(t, New(Options{Predictor: &fakeInferencer{}}).Router(), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	h := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.PredictorLoaded)
	assert.Equal(t, StatusReady, h.PredictionStatus)

	w = do(t, New(Options{InitErr: errors.New("no model bundle available")}).Router(), http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	h = decode[HealthResponse](t, w)
	assert.Equal(t, "unhealthy", h.Status)
	assert.False(t, h.PredictorLoaded)
	assert.Contains(t, h.Reason, "no model bundle available")
}

func TestStatus_AfterPrediction(t *testing.T) {
	now := t0
	clock := func() time.Time { return now }
	r := New(Options{Predictor: &fakeInferencer{}, Clock: clock}).Router()

	now = t0.Add(time.Minute)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/predict").Code)

	now = t0.Add(2 * time.Minute)
	st := decode[StatusResponse](t, do(t, r, http.MethodGet, "/status"))
	assert.Equal(t, StatusCompleted, st.PredictionStatus)
	require.NotNil(t, st.LastPredictionTime)
	assert.True(t, st.LastPredictionTime.Equal(t0.Add(time.Minute)))
	require.NotNil(t, st.Model)
	assert.Equal(t, "train-1", st.Model.RunID)
	assert.Equal(t, "2m0s", st.Uptime)
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, New(Options{}).Router(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "model_loaded")
}
