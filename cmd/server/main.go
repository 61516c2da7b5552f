package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agentbench/sim-engine/internal/benchmark"
	"github.com/agentbench/sim-engine/internal/config"
	"github.com/agentbench/sim-engine/internal/guard"
	"github.com/agentbench/sim-engine/internal/history"
	"github.com/agentbench/sim-engine/internal/metrics"
	"github.com/agentbench/sim-engine/internal/montecarlo"
	"github.com/agentbench/sim-engine/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	// --- Trade history tiers ---
	store := history.NewMemoryStore(cfg.History.Capacity)

	var archive history.Archive
	var cleanup []func()

	if cfg.History.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.History.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := history.NewPostgresArchive(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("archive schema setup failed", "err", err)
			os.Exit(1)
		}
		archive = pg
		slog.Info("connected to PostgreSQL trade archive")

		// Wrap with Redis read-through cache if configured.
		if cfg.History.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.History.RedisURL)
			if err != nil {
				slog.Error("invalid redis_url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			archive = history.NewCachedArchive(archive, rdb,
				time.Duration(cfg.History.CacheTTLSeconds)*time.Second)
			slog.Info("Redis history cache enabled")
		}

		// Warm the in-memory sampling window from the archive.
		warmStore(store, archive, cfg.History.Capacity)
	} else {
		slog.Warn("database_url not set, trade history is in-memory only (will not persist)")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Simulation engine ---
	tracker := telemetry.NewTracker()
	var engineOpts []montecarlo.Option
	if cfg.Simulation.Workers > 0 {
		engineOpts = append(engineOpts, montecarlo.WithWorkers(cfg.Simulation.Workers))
	}
	engine := montecarlo.NewEngine(store, tracker, engineOpts...)

	limiter := guard.NewRunLimiter(
		cfg.Simulation.MaxSimulations,
		cfg.Simulation.MaxHorizonDays,
		cfg.Simulation.MaxWorkUnits,
	)

	defaults := montecarlo.Config{
		NumSimulations:  cfg.Simulation.DefaultNumSimulations,
		HorizonDays:     cfg.Simulation.DefaultHorizonDays,
		InitialCapital:  cfg.Simulation.DefaultInitialCapital,
		ConfidenceLevel: cfg.Simulation.DefaultConfidenceLevel,
	}

	// --- WebSocket hub ---
	wsHub := benchmark.NewWSHub()
	go wsHub.Run()

	// --- Benchmark service ---
	svc := benchmark.NewService(store, archive, engine, tracker, limiter, wsHub, defaults)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"sim-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for run-completion events.
		r.Get("/ws", wsHub.HandleWS)
		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("sim-engine listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down sim-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("sim-engine stopped")
}

// warmStore replays the archived history into the in-memory sampling
// window. The ring keeps only the newest entries per agent, matching its
// eviction behavior on live ingestion.
func warmStore(store *history.MemoryStore, archive history.Archive, capacity int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	all, err := archive.LoadAll(ctx)
	if err != nil {
		slog.Error("archive warm-up failed, starting with empty history", "err", err)
		return
	}
	agents, trades := 0, 0
	for agentID, seq := range all {
		if len(seq) > capacity {
			seq = seq[len(seq)-capacity:]
		}
		store.RecordBatch(agentID, seq)
		agents++
		trades += len(seq)
	}
	slog.Info("trade history warmed from archive", "agents", agents, "trades", trades)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
