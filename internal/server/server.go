package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/kse-bridge/internal/batch"
	"github.com/tournevent/kse-bridge/internal/credential"
	"github.com/tournevent/kse-bridge/internal/telemetry"
	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Orchestrator lists order lines and runs submission batches.
type Orchestrator interface {
	ListLines(ctx context.Context) ([]order.Line, error)
	Submit(ctx context.Context, selected []order.LineID, sessionID string) (*batch.Report, error)
}

// SettingsStore reads and writes the per-session provider credential.
type SettingsStore interface {
	FindBySession(ctx context.Context, sessionID string) (*credential.Record, error)
	Upsert(ctx context.Context, sessionID, apiKey string) (*credential.Record, error)
}

// Config holds server configuration.
type Config struct {
	Port int
}

// Deps are the collaborators of a Server. Notifier, Metrics and Gatherer
// are optional.
type Deps struct {
	Orchestrator Orchestrator
	Settings     SettingsStore
	Notifier     Notifier
	Logger       *otelzap.Logger
	Metrics      *telemetry.Metrics
	Gatherer     prometheus.Gatherer
}

// Server is the HTTP server for the bridge.
type Server struct {
	port         int
	orchestrator Orchestrator
	settings     SettingsStore
	notifier     Notifier
	logger       *otelzap.Logger
	metrics      *telemetry.Metrics
	gatherer     prometheus.Gatherer
}

// New creates a new server instance.
func New(cfg Config, deps Deps) *Server {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(deps.Logger)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		port:         cfg.Port,
		orchestrator: deps.Orchestrator,
		settings:     deps.Settings,
		notifier:     notifier,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		gatherer:     gatherer,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("POST /api/submissions", s.handleSubmit)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	return s.instrument(mux)
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// submissions are sequential provider calls; leave room for a full batch
		WriteTimeout: 6 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordRequest(route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}
