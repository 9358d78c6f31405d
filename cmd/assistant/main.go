package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/aiwebengine"
	cfhttp "github.com/lpajunen/aiwebengine-assistant/internal/adapter/http"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/memstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/modelapi"
	cfnats "github.com/lpajunen/aiwebengine-assistant/internal/adapter/nats"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/natskv"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/otel"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/postgres"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/ristretto"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/tiered"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/ws"
	"github.com/lpajunen/aiwebengine-assistant/internal/config"
	"github.com/lpajunen/aiwebengine-assistant/internal/logger"
	"github.com/lpajunen/aiwebengine-assistant/internal/middleware"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/backingstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/cache"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/eventstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/resilience"
	"github.com/lpajunen/aiwebengine-assistant/internal/service"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "deploy":
			if err := runDeploy(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: assistant [command]

Commands:
  (none)   Run the editor assistant HTTP server
  deploy   Deploy a script to an aiwebengine server and watch it for changes
  help     Show this help message
`)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"max_turns", cfg.Session.MaxTurns,
		"store_memory", cfg.BackingStore.Memory,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownOTEL, err := otel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	checks := map[string]cfhttp.HealthCheck{}

	// --- Backing store ---
	var store backingstore.Store
	if cfg.BackingStore.Memory {
		store = memstore.NewStore()
		slog.Info("backing store in memory")
	} else {
		client := aiwebengine.NewClient(cfg.BackingStore.URL, cfg.BackingStore.Token, cfg.BackingStore.Timeout)
		client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
			resilience.WithIgnore(aiwebengine.IsNotFound)))
		store = client
		slog.Info("backing store configured", "url", cfg.BackingStore.URL)
	}

	// --- Model backend ---
	model := modelapi.NewClient(cfg.ModelBackend.URL, cfg.ModelBackend.APIKey, cfg.ModelBackend.Timeout)
	model.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Approval ledger ---
	var ledger eventstore.Store
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		slog.Info("postgres connected")

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")

		ledger = postgres.NewEventStore(pool)
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	} else {
		ledger = memstore.NewEventStore()
		slog.Info("approval ledger in memory")
	}

	// --- Content cache ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()
	var contentCache cache.Cache = l1
	contentTTL := cfg.Cache.L1TTL

	// --- NATS ---
	var queue *cfnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Drain() }()
		checks["nats"] = func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}

		l2, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		contentCache = tiered.New(l1, l2, cfg.Cache.L1TTL)
		contentTTL = cfg.Cache.L2TTL
		slog.Info("tiered content cache enabled", "bucket", cfg.Cache.L2Bucket)
	}

	// --- Services ---
	hub := ws.NewHub(cfg.Server.CORSOrigin)
	content := service.NewContentCache(store, contentCache, contentTTL)
	previews := service.NewPreviewer(content)
	executor := service.NewExecutor(store, ledger, content, metrics)

	sessions := service.NewSessionService(cfg.Session)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	sessions.StartJanitor(janitorCtx, cfg.Session.CleanupInterval)

	assistant := service.NewAssistantService(sessions, model, previews, executor, ledger, *cfg)
	assistant.SetBroadcaster(hub)
	assistant.SetMetrics(metrics)
	if queue != nil {
		assistant.SetQueue(queue)
	}

	// --- HTTP ---
	globalLimiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, nil)
	stopGlobal := globalLimiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopGlobal()

	sessionLimiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, middleware.SessionKey)
	stopSession := sessionLimiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopSession()

	handlers := &cfhttp.Handlers{
		Assistant:      assistant,
		Checks:         checks,
		SessionLimiter: sessionLimiter.Handler,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(otel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(globalLimiter.Handler)

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	// API routes
	cfhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Model round trips run inside the request.
		WriteTimeout: cfg.ModelBackend.Timeout*time.Duration(cfg.Session.MaxIterations) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
