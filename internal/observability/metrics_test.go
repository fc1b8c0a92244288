package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("miss")))
}

func TestRecordLabelCoverage(t *testing.T) {
	RecordLabelCoverage(30, 40)
	assert.InDelta(t, 0.75, testutil.ToFloat64(DefaultMetrics.LabelValidRatio), 1e-12)
	assert.Equal(t, 30.0, testutil.ToFloat64(DefaultMetrics.LabelValidRows))

	// zero total keeps the last ratio
	RecordLabelCoverage(0, 0)
	assert.InDelta(t, 0.75, testutil.ToFloat64(DefaultMetrics.LabelValidRatio), 1e-12)
}

func TestSetModelLoaded(t *testing.T) {
	SetModelLoaded(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(DefaultMetrics.ModelLoaded))
	SetModelLoaded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(DefaultMetrics.ModelLoaded))
}

func TestRecordPredictionsAndIngest(t *testing.T) {
	green := testutil.ToFloat64(DefaultMetrics.PredictionsByClass.WithLabelValues("green"))
	rows := testutil.ToFloat64(DefaultMetrics.RowsIngested)

	RecordPredictions(map[string]int{"green": 3, "red": 1})
	RecordIngest(2, 5)

	assert.Equal(t, green+3, testutil.ToFloat64(DefaultMetrics.PredictionsByClass.WithLabelValues("green")))
	assert.Equal(t, rows+5, testutil.ToFloat64(DefaultMetrics.RowsIngested))
	assert.Greater(t, testutil.ToFloat64(DefaultMetrics.LastSuccessfulIngestion), 0.0)
}

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "test_op"))

	RecordDBQuery("postgres", "test_op", 0.01, nil)
	RecordDBQuery("postgres", "test_op", 0.02, errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "test_op")))
}

func TestHandler(t *testing.T) {
	RecordTrainingScores(0.8, 0.75, 30)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "station_forecast_training_test_accuracy 0.8")
	assert.Contains(t, string(body), "station_forecast_serving_model_loaded")
}
