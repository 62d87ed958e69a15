package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RyanBlaney/dubsync/configs"
	"github.com/RyanBlaney/dubsync/internal/analysis"
	"github.com/RyanBlaney/dubsync/internal/history"
	"github.com/RyanBlaney/dubsync/internal/metrics"
	"github.com/RyanBlaney/dubsync/internal/session"
	"github.com/RyanBlaney/dubsync/pkg/fingerprint"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// ServerConfig holds review server settings
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	RecordHistory  bool
	Version        string
}

// ServerDeps are the wired components the server serves
type ServerDeps struct {
	Orchestrator *analysis.Orchestrator
	Fingerprints *fingerprint.Service
	Sessions     *session.Store
	History      *history.Store
	Metrics      metrics.Reporter
	Logger       logging.Logger
}

// Server is the dub review HTTP API: uploads come in as one reference plus
// N comparison files, the analysis report goes back as JSON.
type Server struct {
	orchestrator *analysis.Orchestrator
	fingerprints *fingerprint.Service
	sessions     *session.Store
	history      *history.Store
	metrics      metrics.Reporter
	logger       logging.Logger

	maxUploadBytes int64
	recordHistory  bool
	version        string

	httpServer *http.Server
}

// NewServer creates the review server
func NewServer(config *ServerConfig, deps ServerDeps) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	maxUploadBytes := config.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = configs.DefaultMaxUploadBytes
	}
	version := config.Version
	if version == "" {
		version = "dev"
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	reporter := deps.Metrics
	if reporter == nil {
		reporter = metrics.NopReporter{}
	}

	s := &Server{
		orchestrator:   deps.Orchestrator,
		fingerprints:   deps.Fingerprints,
		sessions:       deps.Sessions,
		history:        deps.History,
		metrics:        reporter,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		recordHistory:  config.RecordHistory,
		version:        version,
	}

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler builds the routed handler with middleware applied. Exposed so
// tests can drive the server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/clear_cache", s.handleClearCache)

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Review server listening", logging.Fields{
		"addr":             s.httpServer.Addr,
		"max_upload_bytes": s.maxUploadBytes,
		"version":          s.version,
	})

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Review server shutting down")
	return s.httpServer.Shutdown(ctx)
}
