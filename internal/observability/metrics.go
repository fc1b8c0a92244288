// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Preprocessing metrics
	RowsProcessed   *prometheus.CounterVec
	LabelValidRatio prometheus.Gauge
	LabelValidRows  prometheus.Gauge
	StageDuration   *prometheus.HistogramVec
	FeatureMismatch prometheus.Counter

	// Training metrics
	TrainingRunsTotal *prometheus.CounterVec
	TrainingDuration  prometheus.Histogram
	ModelAccuracy     prometheus.Gauge
	CVScore           prometheus.Gauge
	SelectedFeatures  prometheus.Gauge

	// Serving metrics
	PredictionRequests *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	PredictionsByClass *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	ModelLoaded        prometheus.Gauge

	// Ingestion metrics
	RowsIngested     prometheus.Counter
	StationsUpserted prometheus.Counter
	IngestErrors     *prometheus.CounterVec
	FeedLatency      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion  prometheus.Gauge
	LastSuccessfulTraining   prometheus.Gauge
	LastSuccessfulPrediction prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "station_forecast"
	}

	return &Metrics{
		// Preprocessing metrics
		RowsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preprocess",
			Name:      "rows_processed_total",
			Help:      "Total number of raw availability rows preprocessed by mode",
		}, []string{"mode"}),
		LabelValidRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "preprocess",
			Name:      "label_valid_ratio",
			Help:      "Fraction of rows that found an observation exactly at the forecast horizon",
		}),
		LabelValidRows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "preprocess",
			Name:      "label_valid_rows",
			Help:      "Number of rows with a valid future target in the last alignment",
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "preprocess",
			Name:      "stage_duration_seconds",
			Help:      "Preprocessing stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		FeatureMismatch: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preprocess",
			Name:      "feature_mismatch_total",
			Help:      "Total number of transforms missing trained feature columns",
		}),

		// Training metrics
		TrainingRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Total number of training runs by status",
		}, []string{"status"}),
		TrainingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "duration_seconds",
			Help:      "Training run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		ModelAccuracy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "test_accuracy",
			Help:      "Hold-out accuracy of the last trained model",
		}),
		CVScore: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "cv_accuracy",
			Help:      "Best temporal cross-validation accuracy of the last grid search",
		}),
		SelectedFeatures: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "selected_features",
			Help:      "Number of feature columns kept by the selector",
		}),

		// Serving metrics
		PredictionRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "prediction_requests_total",
			Help:      "Total number of prediction requests by status",
		}, []string{"status"}),
		PredictionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "prediction_duration_seconds",
			Help:      "Time to produce a prediction response in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PredictionsByClass: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "predictions_total",
			Help:      "Total number of station predictions by availability class",
		}, []string{"class"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "cache_lookups_total",
			Help:      "Prediction cache lookups by result",
		}, []string{"result"}),
		ModelLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "model_loaded",
			Help:      "1 when a model bundle is loaded and ready",
		}),

		// Ingestion metrics
		RowsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "availability_rows_stored_total",
			Help:      "Total number of availability rows stored",
		}),
		StationsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stations_upserted_total",
			Help:      "Total number of station metadata upserts",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by stage",
		}, []string{"stage"}),
		FeedLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gbfs",
			Name:      "fetch_latency_seconds",
			Help:      "GBFS feed fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"feed"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulTraining: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_training_timestamp",
			Help:      "Unix timestamp of last successful training run",
		}),
		LastSuccessfulPrediction: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_prediction_timestamp",
			Help:      "Unix timestamp of last successful prediction run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRowsProcessed counts raw rows entering the preprocessor.
func RecordRowsProcessed(mode string, n int) {
	DefaultMetrics.RowsProcessed.WithLabelValues(mode).Add(float64(n))
}

// RecordLabelCoverage records how many rows found a future observation.
func RecordLabelCoverage(valid, total int) {
	DefaultMetrics.LabelValidRows.Set(float64(valid))
	if total > 0 {
		DefaultMetrics.LabelValidRatio.Set(float64(valid) / float64(total))
	}
}

// RecordStage records the duration of a preprocessing stage.
func RecordStage(stage string, d time.Duration) {
	DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordFeatureMismatch counts a transform missing trained columns.
func RecordFeatureMismatch() {
	DefaultMetrics.FeatureMismatch.Inc()
}

// RecordTrainingRun records a training run.
func RecordTrainingRun(status string, durationSeconds float64) {
	DefaultMetrics.TrainingRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.TrainingDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulTraining.SetToCurrentTime()
	}
}

// RecordTrainingScores records the quality of a trained model.
func RecordTrainingScores(testAccuracy, cvAccuracy float64, selected int) {
	DefaultMetrics.ModelAccuracy.Set(testAccuracy)
	DefaultMetrics.CVScore.Set(cvAccuracy)
	DefaultMetrics.SelectedFeatures.Set(float64(selected))
}

// RecordPredictionRequest records a served prediction request.
func RecordPredictionRequest(status string, seconds float64) {
	DefaultMetrics.PredictionRequests.WithLabelValues(status).Inc()
	DefaultMetrics.PredictionDuration.Observe(seconds)
}

// RecordPredictions counts station predictions by class label.
func RecordPredictions(counts map[string]int) {
	for class, n := range counts {
		DefaultMetrics.PredictionsByClass.WithLabelValues(class).Add(float64(n))
	}
	DefaultMetrics.LastSuccessfulPrediction.SetToCurrentTime()
}

// RecordCacheLookup records a prediction cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// SetModelLoaded flags whether a model bundle is ready to serve.
func SetModelLoaded(loaded bool) {
	if loaded {
		DefaultMetrics.ModelLoaded.Set(1)
		return
	}
	DefaultMetrics.ModelLoaded.Set(0)
}

// RecordIngest records rows and stations written by one ingest cycle.
func RecordIngest(stations, rows int) {
	DefaultMetrics.StationsUpserted.Add(float64(stations))
	DefaultMetrics.RowsIngested.Add(float64(rows))
	DefaultMetrics.LastSuccessfulIngestion.SetToCurrentTime()
}

// RecordIngestError records an ingestion error.
func RecordIngestError(stage string) {
	DefaultMetrics.IngestErrors.WithLabelValues(stage).Inc()
}

// RecordFeedLatency records a GBFS feed fetch.
func RecordFeedLatency(feed string, seconds float64) {
	DefaultMetrics.FeedLatency.WithLabelValues(feed).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
