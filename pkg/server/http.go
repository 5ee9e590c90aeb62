// Package server exposes the agent's read-only health and metrics
// surface over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kumarabd/gokit/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgefleet/logship/internal/metrics"
	"github.com/edgefleet/logship/pkg/policy"
)

// Config contains configuration for the HTTP server.
type Config struct {
	Host         string        `json:"host" yaml:"host" default:"0.0.0.0"`
	Port         string        `json:"port" yaml:"port" default:"8080"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" default:"30s"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout" default:"60s"`
	StaleAfter   time.Duration `json:"stale_after" yaml:"stale_after" default:"120s"` // Liveness staleness threshold
}

// HTTP serves the health and metrics endpoints. Everything it reports
// is a snapshot read; it never writes shared state.
type HTTP struct {
	handler  *gin.Engine
	config   *Config
	log      *logger.Handler
	metric   *metrics.Handler
	store    *policy.Store
	queueLen func() int

	server    *http.Server
	isRunning bool
	mu        sync.RWMutex
}

// NewHTTP creates the health/metrics server. queueLen reports the
// current depth of the shared record queue.
func NewHTTP(config *Config, metric *metrics.Handler, store *policy.Store, queueLen func() int, log *logger.Handler) *HTTP {
	gin.SetMode(gin.ReleaseMode)

	s := &HTTP{
		handler:  gin.New(),
		config:   config,
		log:      log,
		metric:   metric,
		store:    store,
		queueLen: queueLen,
	}

	s.handler.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *HTTP) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("HTTP server is already running")
	}

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.isRunning = true
	s.mu.Unlock()

	s.log.Info().Msgf("Starting HTTP server on %s", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *HTTP) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning || s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("Error during HTTP server shutdown")
		return err
	}
	s.isRunning = false
	s.log.Info().Msg("HTTP server stopped")
	return nil
}

// Handler returns the gin engine, used by tests.
func (s *HTTP) Handler() http.Handler {
	return s.handler
}

func (s *HTTP) setupRoutes() {
	s.handler.GET("/health", s.healthHandler)
	s.handler.GET("/metrics", s.metricsHandler)
	s.handler.GET("/metrics/prometheus", gin.WrapH(promhttp.Handler()))
}

// healthHandler reports liveness: healthy only after at least one
// successful send and while the last batch is fresh enough. Anything
// else returns 503 so an orchestrator can restart the agent.
func (s *HTTP) healthHandler(c *gin.Context) {
	snap := s.metric.Snapshot()

	lastBatchAgo := -1.0
	if !snap.LastBatch.IsZero() {
		lastBatchAgo = time.Since(snap.LastBatch).Seconds()
	}

	healthy := snap.Healthy && lastBatchAgo >= 0 && lastBatchAgo < s.config.StaleAfter.Seconds()
	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":         status,
		"agent_id":       snap.AgentID,
		"uptime_seconds": snap.UptimeSeconds,
		"last_batch_ago": lastBatchAgo,
		"config_version": s.store.Version(),
		"log_queue_size": s.queueLen(),
	})
}

func (s *HTTP) metricsHandler(c *gin.Context) {
	snap := s.metric.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"agent_id":          snap.AgentID,
		"uptime_seconds":    snap.UptimeSeconds,
		"logs_processed":    snap.LogsProcessed,
		"logs_sampled":      snap.LogsSampled,
		"batches_sent":      snap.BatchesSent,
		"batches_failed":    snap.BatchesFailed,
		"bytes_original":    snap.BytesOriginal,
		"bytes_compressed":  snap.BytesCompressed,
		"compression_ratio": snap.CompressionRatio,
		"logs_per_second":   snap.LogsPerSecond,
		"log_queue_size":    s.queueLen(),
	})
}
