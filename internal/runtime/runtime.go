package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fuaadabdullah/goblin-runtime/internal/auditsink"
	"github.com/fuaadabdullah/goblin-runtime/internal/authn"
	"github.com/fuaadabdullah/goblin-runtime/internal/catalog"
	"github.com/fuaadabdullah/goblin-runtime/internal/costs"
	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
	"github.com/fuaadabdullah/goblin-runtime/internal/history"
	"github.com/fuaadabdullah/goblin-runtime/internal/llm"
	"github.com/fuaadabdullah/goblin-runtime/internal/pricing"
	"github.com/fuaadabdullah/goblin-runtime/internal/scheduler"
	"github.com/fuaadabdullah/goblin-runtime/internal/server"
	"github.com/fuaadabdullah/goblin-runtime/internal/taskexec"
	"github.com/fuaadabdullah/goblin-runtime/internal/telemetry"
)

// Runtime owns every collaborator wired from one Config: the catalog,
// provider registry, cost/history stores, task executor, scheduled
// triggers, and the HTTP/WebSocket server. Callers build one with Build,
// run it with Serve, and tear it down with Shutdown.
type Runtime struct {
	Config *Config

	Logger  *slog.Logger
	Tracer  *telemetry.Tracer
	Metrics *telemetry.Metrics

	Catalog   *catalog.Store
	Registry  *llm.Registry
	Costs     *costs.Tracker
	History   *history.Store
	Executor  *taskexec.Executor
	Scheduler *scheduler.Scheduler
	Server    *server.Server

	watcher        *catalog.Watcher
	watchDone      chan struct{}
	shutdownTracer func(context.Context) error
}

// Build resolves every collaborator from cfg. It is the only place that
// decides which optional providers get constructed and which persistence
// backend backs history/costs; everything downstream takes the result as
// given.
func Build(ctx context.Context, cfg *Config) (*Runtime, error) {
	logger, err := telemetry.NewLogger(telemetry.LogConfig{
		Level:  cfg.Telemetry.LogLevel,
		Format: cfg.Telemetry.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	tracer, shutdownTracer := telemetry.NewTracer(telemetry.TraceConfig{
		ServiceName:  "goblin-runtime",
		Endpoint:     cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.OTLPInsecure,
		SamplingRate: cfg.Telemetry.TraceSampling,
	})
	metrics := telemetry.NewMetrics()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	catalogStore := catalog.NewStore(cat)

	var watcher *catalog.Watcher
	if !cfg.CatalogHotReloadDisabled {
		if resolvedPath, perr := catalog.ResolvePath(cfg.CatalogPath); perr == nil {
			if w, werr := catalog.Watch(resolvedPath, logger); werr == nil {
				watcher = w
			} else {
				logger.Warn("catalog hot-reload watcher unavailable, continuing without it", "error", werr)
			}
		}
	}

	providers, err := buildProviders(ctx, cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("initializing providers: %w", err)
	}
	registry := llm.NewRegistry(providers...)

	costsTracker, historyStore, err := buildStores(cfg.Persistence, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing persistence: %w", err)
	}

	audit := auditsink.New(cfg.Telemetry.AuditURL, logger, 2)

	executor := &taskexec.Executor{
		Catalog:  catalogStore,
		Registry: registry,
		History:  historyStore,
		Costs:    costsTracker,
		Audit:    audit,
		Logger:   logger,
		Tracer:   tracer,
		Metrics:  metrics,
	}

	sched := scheduler.New(executor, audit, logger).WithTelemetry(tracer, metrics)
	if err := sched.Load(cat.ScheduledTriggers()); err != nil {
		return nil, fmt.Errorf("loading scheduled triggers: %w", err)
	}

	srv := server.New(server.Config{
		Catalog:        catalogStore,
		Registry:       registry,
		Executor:       executor,
		History:        historyStore,
		Costs:          costsTracker,
		Auth:           authn.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry),
		Creds:          authn.NewStaticCredentialsFromEnv(),
		Audit:          audit,
		Logger:         logger,
		Metrics:        metrics,
		DefaultAgentID: cfg.DefaultAgentID,
		RateLimit:      cfg.Server.RateLimit,
	})

	rt := &Runtime{
		Config:         cfg,
		Logger:         logger,
		Tracer:         tracer,
		Metrics:        metrics,
		Catalog:        catalogStore,
		Registry:       registry,
		Costs:          costsTracker,
		History:        historyStore,
		Executor:       executor,
		Scheduler:      sched,
		Server:         srv,
		watcher:        watcher,
		watchDone:      make(chan struct{}),
		shutdownTracer: shutdownTracer,
	}

	if watcher != nil {
		go rt.watchCatalog()
	}

	return rt, nil
}

// watchCatalog swaps each successfully re-validated catalog reload into
// Catalog as it arrives, until Shutdown closes watchDone.
func (r *Runtime) watchCatalog() {
	for {
		select {
		case cat, ok := <-r.watcher.Reloaded:
			if !ok {
				return
			}
			r.Catalog.Swap(cat)
			r.Logger.Info("catalog hot-reloaded")
		case <-r.watchDone:
			return
		}
	}
}

// buildProviders constructs every provider whose required configuration is
// present. The local provider is always built: it is always "healthy if
// reachable" and costs nothing in the pricing table, matching spec.md's
// zero-config-required baseline.
func buildProviders(ctx context.Context, cfg ProvidersConfig) ([]llm.Provider, error) {
	providers := []llm.Provider{llm.NewLocalProvider(cfg.OllamaBaseURL, cfg.OllamaModel)}

	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}
	if cfg.AWSRegion != "" {
		bedrock, err := llm.NewBedrockProvider(ctx, cfg.AWSRegion, cfg.BedrockModel)
		if err != nil {
			return nil, fmt.Errorf("bedrock provider: %w", err)
		}
		providers = append(providers, bedrock)
	}

	return providers, nil
}

// buildStores selects the in-memory or SQLite-backed persistence sinks per
// cfg.Backend. An unrecognized backend name is a configuration error.
func buildStores(cfg PersistenceConfig, logger *slog.Logger) (*costs.Tracker, *history.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return costs.New(pricing.Default(), nil), history.New(nil), nil
	case "sqlite":
		costsSink, err := costs.OpenSQLiteSink(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening cost sqlite sink: %w", err)
		}
		historySink, err := history.OpenSQLiteSink(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening history sqlite sink: %w", err)
		}
		return costs.New(pricing.Default(), costsSink), history.New(historySink), nil
	default:
		return nil, nil, goblinerr.New(goblinerr.KindConfiguration, "unknown persistence backend "+cfg.Backend)
	}
}

// Serve starts the scheduler and blocks serving HTTP until ctx is
// cancelled, then shuts down gracefully.
func (r *Runtime) Serve(ctx context.Context) error {
	r.Scheduler.Start()
	defer r.Scheduler.Stop()
	return r.Server.Run(ctx, r.Config.Server.Addr)
}

// Shutdown releases resources Serve doesn't own directly: the catalog
// watcher, if one was started, and the tracer's exporter connection. Safe
// to call even if Serve was never started.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.watcher != nil {
		close(r.watchDone)
		if err := r.watcher.Close(); err != nil {
			r.Logger.Warn("catalog watcher close error", "error", err)
		}
	}
	return r.shutdownTracer(ctx)
}
