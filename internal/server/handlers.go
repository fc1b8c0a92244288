package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"station-forecast-lab/internal/cache"
	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/observability"
	"station-forecast-lab/internal/predictor"
)

// HealthResponse is the JSON body of /health.
type HealthResponse struct {
	Status           string    `json:"status"`
	Reason           string    `json:"reason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	PredictorLoaded  bool      `json:"predictor_loaded"`
	PredictionStatus string    `json:"prediction_status,omitempty"`
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	PredictionStatus   string          `json:"prediction_status"`
	LastPredictionTime *time.Time      `json:"last_prediction_time"`
	PredictorLoaded    bool            `json:"predictor_loaded"`
	Model              *predictor.Info `json:"model,omitempty"`
	Uptime             string          `json:"uptime"`
	Timestamp          time.Time       `json:"timestamp"`
}

// PredictionItem is one station forecast in a /predict response.
type PredictionItem struct {
	StationID                  string    `json:"station_id"`
	PredictedAvailabilityClass int       `json:"predicted_availability_class"`
	AvailabilityPrediction     string    `json:"availability_prediction"`
	ConfidenceGreen            float64   `json:"confidence_green"`
	ConfidenceYellow           float64   `json:"confidence_yellow"`
	ConfidenceRed              float64   `json:"confidence_red"`
	PredictionTime             time.Time `json:"prediction_time"`
	HorizonHours               int       `json:"horizon_hours"`
}

// PredictResponse is the JSON body of POST /predict.
type PredictResponse struct {
	Predictions []PredictionItem `json:"predictions"`
	Count       int              `json:"count"`
	Timestamp   time.Time        `json:"timestamp"`
	Cached      bool             `json:"cached"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status, _ := s.snapshot()
	now := s.now().UTC()

	if status == StatusInitializationFailed {
		resp := HealthResponse{
			Status:          "unhealthy",
			Reason:          "predictor initialization failed",
			Timestamp:       now,
			PredictorLoaded: false,
		}
		if s.initErr != nil {
			resp.Reason += ": " + s.initErr.Error()
		}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		Timestamp:        now,
		PredictorLoaded:  s.pred != nil,
		PredictionStatus: status,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status, last := s.snapshot()
	now := s.now().UTC()

	resp := StatusResponse{
		PredictionStatus: status,
		PredictorLoaded:  s.pred != nil,
		Uptime:           now.Sub(s.startedAt).String(),
		Timestamp:        now,
	}
	if !last.IsZero() {
		resp.LastPredictionTime = &last
	}
	if s.pred != nil {
		info := s.pred.Info()
		resp.Model = &info
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePredict(c *gin.Context) {
	start := time.Now()
	outcome := "error"
	defer func() { observability.RecordPredictionRequest(outcome, time.Since(start).Seconds()) }()

	ctx := c.Request.Context()

	if entry, ok := s.cached(c); ok {
		outcome = "cached"
		s.log.Info("returning_cached_predictions", zap.Int("count", len(entry.Predictions)))
		c.JSON(http.StatusOK, response(entry, true))
		return
	}

	if s.pred == nil {
		s.log.Error("predictor_not_initialized")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Predictor not initialized"})
		return
	}

	s.inferMu.Lock()
	defer s.inferMu.Unlock()

	// another request may have filled the cache while this one waited
	if entry, ok := s.cached(c); ok {
		outcome = "cached"
		c.JSON(http.StatusOK, response(entry, true))
		return
	}

	s.setStatus(StatusRunning)
	s.log.Info("starting_inference")
	preds, err := s.pred.RunInference(ctx)
	if err != nil {
		s.setStatus(StatusFailed)
		s.log.Error("inference_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entry := &cache.Entry{Predictions: preds, GeneratedAt: s.now().UTC()}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.log.Warn("cache_write_failed", zap.Error(err))
	}

	s.mu.Lock()
	s.status = StatusCompleted
	s.lastPrediction = entry.GeneratedAt
	s.mu.Unlock()

	outcome = "success"
	s.log.Info("inference_completed", zap.Int("predictions", len(preds)))
	c.JSON(http.StatusOK, response(entry, false))
}

// cached reads the cache. Cache errors count as a miss.
func (s *Server) cached(c *gin.Context) (*cache.Entry, bool) {
	entry, ok, err := s.cache.Get(c.Request.Context())
	if err != nil {
		s.log.Warn("cache_read_failed", zap.Error(err))
		observability.RecordCacheLookup(false)
		return nil, false
	}
	observability.RecordCacheLookup(ok)
	return entry, ok
}

func response(entry *cache.Entry, cached bool) PredictResponse {
	items := make([]PredictionItem, 0, len(entry.Predictions))
	for _, p := range entry.Predictions {
		items = append(items, item(p))
	}
	return PredictResponse{
		Predictions: items,
		Count:       len(items),
		Timestamp:   entry.GeneratedAt,
		Cached:      cached,
	}
}

func item(p *domain.Prediction) PredictionItem {
	return PredictionItem{
		StationID:                  p.StationID,
		PredictedAvailabilityClass: int(p.PredictedAvailabilityClass),
		AvailabilityPrediction:     p.AvailabilityPrediction,
		ConfidenceGreen:            p.ConfidenceGreen,
		ConfidenceYellow:           p.ConfidenceYellow,
		ConfidenceRed:              p.ConfidenceRed,
		PredictionTime:             p.PredictionTime,
		HorizonHours:               p.HorizonHours,
	}
}
