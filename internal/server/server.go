// Package server exposes the runtime over HTTP and WebSocket: task
// execution, orchestration, cost/history queries, and a Prometheus
// /metrics endpoint, wired together behind an optional bearer-token gate.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fuaadabdullah/goblin-runtime/internal/auditsink"
	"github.com/fuaadabdullah/goblin-runtime/internal/authn"
	"github.com/fuaadabdullah/goblin-runtime/internal/catalog"
	"github.com/fuaadabdullah/goblin-runtime/internal/costs"
	"github.com/fuaadabdullah/goblin-runtime/internal/history"
	"github.com/fuaadabdullah/goblin-runtime/internal/llm"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
	"github.com/fuaadabdullah/goblin-runtime/internal/orchestration"
	"github.com/fuaadabdullah/goblin-runtime/internal/taskexec"
	"github.com/fuaadabdullah/goblin-runtime/internal/telemetry"
)

// defaultShutdownTimeout bounds Shutdown when the caller's context carries
// no deadline of its own.
const defaultShutdownTimeout = 5 * time.Second

// Config assembles every collaborator the server dispatches to. Catalog,
// Registry, Executor, History, and Costs are required; Auth, Creds, Audit,
// and Logger may be left zero-valued for a dashboard-auth-disabled,
// audit-disabled deployment.
type Config struct {
	Catalog        *catalog.Store
	Registry       *llm.Registry
	Executor       *taskexec.Executor
	History        *history.Store
	Costs          *costs.Tracker
	Auth           *authn.JWTService
	Creds          authn.StaticCredentials
	Audit          *auditsink.Sink
	Logger         *slog.Logger
	Metrics        *telemetry.Metrics
	DefaultAgentID string
	RateLimit      int // requests per minute per IP; 0 uses the default of 100, < 0 disables limiting
}

// Server holds the runtime's collaborators and routes every endpoint named
// in the external interface table to a handler method.
type Server struct {
	catalog        *catalog.Store
	registry       *llm.Registry
	executor       *taskexec.Executor
	history        *history.Store
	costs          *costs.Tracker
	auth           *authn.JWTService
	creds          authn.StaticCredentials
	audit          *auditsink.Sink
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	defaultAgentID string

	limiter *rateLimiter
	mux     *http.ServeMux

	plansMu sync.Mutex
	plans   map[string]*model.OrchestrationPlan
	active  map[string]*orchestration.Scheduler

	startedAt time.Time

	httpServer *http.Server
}

// New builds a Server and registers its routes. It does not start
// listening; call Run for that.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = auditsink.New("", cfg.Logger, 1)
	}
	s := &Server{
		catalog:        cfg.Catalog,
		registry:       cfg.Registry,
		executor:       cfg.Executor,
		history:        cfg.History,
		costs:          cfg.Costs,
		auth:           cfg.Auth,
		creds:          cfg.Creds,
		audit:          cfg.Audit,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		defaultAgentID: cfg.DefaultAgentID,
		limiter:        newRateLimiter(cfg.RateLimit, time.Minute),
		plans:          map[string]*model.OrchestrationPlan{},
		active:         map[string]*orchestration.Scheduler{},
		startedAt:      time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/goblins", s.handleGoblins)
	mux.HandleFunc("/api/execute", s.handleExecute)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/api/stats/", s.handleStats)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/orchestrate/parse", s.handleOrchestrateParse)
	mux.HandleFunc("/api/orchestrate/execute", s.handleOrchestrateExecute)
	mux.HandleFunc("/api/orchestrate/plans", s.handleOrchestratePlans)
	mux.HandleFunc("/api/orchestrate/plans/", s.handleOrchestratePlanByID)
	mux.HandleFunc("/api/orchestrate/cancel/", s.handleOrchestrateCancel)
	mux.HandleFunc("/api/costs/summary", s.handleCostsSummary)
	mux.HandleFunc("/api/costs/goblin/", s.handleCostsByGoblin)
	mux.HandleFunc("/api/costs/guild/", s.handleCostsByGuild)
	mux.HandleFunc("/api/costs/export", s.handleCostsExport)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())

	s.mux = mux
}

// Handler returns the fully composed handler: logging, rate limiting, then
// bearer-token auth, wrapping the route table.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = authn.Middleware(s.auth, s.logger)(h)
	h = s.limiter.Middleware(h)
	h = loggingMiddleware(s.logger, s.metrics)(h)
	return h
}

// Run listens on addr and serves until ctx is cancelled, then shuts down
// gracefully within defaultShutdownTimeout. It returns nil on a normal
// shutdown and a non-nil error on a startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown error", "error", err)
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		return err
	}
}

// loggingMiddleware logs method/path/status/duration for every request and,
// when metrics is non-nil, records the same fields as Prometheus counters.
func loggingMiddleware(logger *slog.Logger, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", duration)
			if metrics != nil {
				metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rw.status), duration.Seconds())
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
