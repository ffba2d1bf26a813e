// Package health serves liveness, readiness, run status and Prometheus metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/baseline-edge/internal/metrics"
	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/scheduler"
)

const (
	defaultPort        = "9090"
	defaultMetricsPath = "/metrics"
	pingTimeout        = 3 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// DatabasePinger defines the interface for checking database connectivity.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter exposes the state of scheduled replay runs.
type StatusReporter interface {
	Status() scheduler.Status
}

// RunReporter exposes the headline of the most recent completed replay, nil before the first.
type RunReporter interface {
	LatestRun() *models.ReplayRun
}

// HealthResponse is the body of /health and /live.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// ReadyResponse is the body of /ready.
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
	Schedule *scheduler.Status `json:"schedule,omitempty"`
}

// Config holds the configuration for the health server. DB, Schedule and Runs are optional.
type Config struct {
	ServiceName string
	Version     string
	Commit      string
	Port        string
	MetricsPath string
	Logger      *logrus.Logger
	DB          DatabasePinger
	Schedule    StatusReporter
	Runs        RunReporter
}

// Server serves the operational endpoints of a scheduled replay process.
type Server struct {
	cfg      Config
	logger   *logrus.Entry
	metrics  http.Handler
	server   *http.Server
	listener net.Listener

	mu    sync.RWMutex
	ready bool
}

// NewServer creates a new health server. The port falls back to HEALTH_PORT, then 9090.
func NewServer(cfg Config) *Server {
	if cfg.Port == "" {
		cfg.Port = os.Getenv("HEALTH_PORT")
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = defaultMetricsPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Server{
		cfg:     cfg,
		logger:  logger.WithField("component", "health"),
		metrics: metrics.Handler(),
	}
}

// SetReady marks the server as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady returns whether the server is ready.
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/runs/latest", s.handleLatestRun)
	mux.Handle(s.cfg.MetricsPath, s.metrics)
	return mux
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the port and serves in the background until ctx is cancelled.
// A port that cannot be bound is reported here rather than from the serving goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.cfg.Port, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.WithFields(logrus.Fields{
		"addr":    listener.Addr().String(),
		"service": s.cfg.ServiceName,
		"metrics": s.cfg.MetricsPath,
	}).Info("Health server starting")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Health server error")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Health server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.cfg.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
		Commit:    s.cfg.Commit,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: s.cfg.ServiceName})
}

// handleReady fails while the server is not marked ready, the database does not
// answer, or the latest replay found temporal leakage. A failed scheduled run is
// reported but does not fail readiness: the next tick may succeed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := make(map[string]string)
	healthy := true
	fail := func(name, detail string) {
		healthy = false
		checks[name] = detail
	}

	if s.IsReady() {
		checks["service"] = "ok"
	} else {
		fail("service", "not_ready")
	}

	if s.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := s.cfg.DB.Ping(ctx); err != nil {
			fail("database", fmt.Sprintf("error: %v", err))
		} else {
			checks["database"] = "ok"
		}
	}

	response := ReadyResponse{Service: s.cfg.ServiceName}
	if s.cfg.Schedule != nil {
		status := s.cfg.Schedule.Status()
		response.Schedule = &status
		if status.LastError != "" {
			checks["last_replay"] = "error: " + status.LastError
		} else if status.Runs > 0 {
			checks["last_replay"] = "ok"
		}
	}
	if s.cfg.Runs != nil {
		if run := s.cfg.Runs.LatestRun(); run != nil && run.LeakageViolations > 0 {
			fail("leakage", fmt.Sprintf("%d violations in run %s", run.LeakageViolations, run.ID))
		}
	}

	response.Checks = checks
	response.Duration = time.Since(start).String()
	if healthy {
		response.Status = "ok"
		writeJSON(w, http.StatusOK, response)
		return
	}
	response.Status = "not_ready"
	writeJSON(w, http.StatusServiceUnavailable, response)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	var run *models.ReplayRun
	if s.cfg.Runs != nil {
		run = s.cfg.Runs.LatestRun()
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed replay yet"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}
