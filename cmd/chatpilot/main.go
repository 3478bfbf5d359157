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
	"golang.org/x/sync/errgroup"

	cphttp "github.com/seralis/chatpilot/internal/adapter/http"
	cpnats "github.com/seralis/chatpilot/internal/adapter/nats"
	"github.com/seralis/chatpilot/internal/adapter/otel"
	"github.com/seralis/chatpilot/internal/adapter/postgres"
	"github.com/seralis/chatpilot/internal/adapter/ristretto"
	"github.com/seralis/chatpilot/internal/adapter/upstream"
	"github.com/seralis/chatpilot/internal/adapter/ws"
	"github.com/seralis/chatpilot/internal/config"
	"github.com/seralis/chatpilot/internal/logger"
	"github.com/seralis/chatpilot/internal/middleware"
	"github.com/seralis/chatpilot/internal/port/producer"
	"github.com/seralis/chatpilot/internal/resilience"
	"github.com/seralis/chatpilot/internal/service"
	"github.com/seralis/chatpilot/internal/simulate"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"simulate", cfg.Chat.Simulate,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
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

	queue, err := cpnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// --- Event producer ---
	var prod producer.Producer
	if cfg.Chat.Simulate {
		prod = simulate.New(simulate.WithDelay(cfg.Chat.SimulateDelay))
		slog.Info("using simulated event producer", "delay", cfg.Chat.SimulateDelay)
	} else {
		client := upstream.NewClient(cfg.Upstream, log)
		client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		prod = client
	}

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	events := postgres.NewEventLog(pool)

	turnSvc := service.NewTurnService(service.TurnDeps{
		DB:       store,
		Events:   events,
		Hub:      hub,
		Queue:    queue,
		Producer: prod,
		Metrics:  metrics,
		Log:      log,
	}, cfg.Chat.TurnTimeout)
	historySvc := service.NewHistoryService(store, nil, log)
	welcomeSvc := service.NewWelcomeService(cache, cfg.Cache.WelcomeTTL, log)

	// --- HTTP ---
	handlers := &cphttp.Handlers{
		Store:          store,
		Turns:          turnSvc,
		History:        historySvc,
		Welcome:        welcomeSvc,
		Hub:            hub,
		MaxUploadBytes: cfg.Excel.MaxUploadMB << 20,
		TemplateRows:   cfg.Excel.TemplateRows,
	}

	r := chi.NewRouter()
	r.Use(cphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(cphttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	cphttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// SSE and WebSocket responses are open-ended; the turn timeout
		// bounds streaming instead of a write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
