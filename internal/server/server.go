// Package server exposes inference over HTTP: /health, /status, /metrics
// and POST /predict with a short-lived result cache.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"station-forecast-lab/internal/cache"
	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/observability"
	"station-forecast-lab/internal/predictor"
)

// Prediction status values reported by /health and /status.
const (
	StatusNotStarted           = "not_started"
	StatusReady                = "ready"
	StatusInitializationFailed = "initialization_failed"
	StatusRunning              = "running"
	StatusCompleted            = "completed"
	StatusFailed               = "failed"
)

// Inferencer runs inference on demand.
type Inferencer interface {
	RunInference(ctx context.Context) ([]*domain.Prediction, error)
	Info() predictor.Info
}

// Options configures a Server.
type Options struct {
	Predictor Inferencer  // nil when initialization failed
	InitErr   error       // why Predictor is nil
	Cache     cache.Cache // cache.NewMemory(cache.DefaultTTL) when nil
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Server holds the HTTP handlers and serving state.
type Server struct {
	pred    Inferencer
	initErr error
	cache   cache.Cache
	log     *zap.Logger
	now     func() time.Time

	// inferMu serializes cache misses so one inference serves concurrent callers
	inferMu sync.Mutex

	mu             sync.Mutex
	status         string
	lastPrediction time.Time
	startedAt      time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory(cache.DefaultTTL)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	status := StatusReady
	switch {
	case opts.InitErr != nil:
		status = StatusInitializationFailed
	case opts.Predictor == nil:
		status = StatusNotStarted
	}
	observability.SetModelLoaded(opts.Predictor != nil)

	return &Server{
		pred:      opts.Predictor,
		initErr:   opts.InitErr,
		cache:     opts.Cache,
		log:       opts.Logger.Named("server"),
		now:       opts.Clock,
		status:    status,
		startedAt: opts.Clock().UTC(),
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(s.log, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.log, true))

	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/metrics", gin.WrapH(observability.Handler()))
	router.POST("/predict", s.handlePredict)
	return router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http_server_starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("http_server_shutting_down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Server) snapshot() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastPrediction
}
