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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/paper-engine/internal/config"
	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/session"
	"github.com/atmx/paper-engine/internal/simrand"
	"github.com/atmx/paper-engine/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	level, err := config.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		slog.Warn("unknown log level, using info", "err", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := cfg.Storage.DatabaseURL; dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(context.Background()); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := cfg.Storage.RedisURL; redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Storage.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.Storage.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Session ---
	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	snap, err := st.LoadSnapshot(context.Background(), cfg.Session.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap = nil
		slog.Info("starting new session", "session", cfg.Session.ID, "seed", seed)
	case err != nil:
		slog.Error("failed to load session", "session", cfg.Session.ID, "err", err)
		os.Exit(1)
	default:
		// Event and trade IDs come from the seeded source; a resumed run must
		// not replay the draws of the run that wrote the snapshot.
		seed ^= uint64(snapTick(snap)) * 0x9e3779b97f4a7c15
		slog.Info("resuming session", "session", cfg.Session.ID, "tick", snapTick(snap), "seed", seed)
	}

	sess, err := session.New(session.OptionsFromConfig(cfg), snap, simrand.New(seed), time.Now().UTC())
	if err != nil {
		slog.Error("failed to create session", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- WebSocket hub ---
	wsHub := session.NewWSHub()
	go wsHub.Run(ctx)

	// --- Simulation loop ---
	runner := session.NewRunner(sess, st, wsHub, session.Intervals{
		Tick:  cfg.Sim.TickInterval,
		Event: cfg.Sim.EventInterval,
		Book:  cfg.Sim.BookInterval,
		Save:  cfg.Sim.SaveInterval,
	})
	runnerDone := make(chan error, 1)
	go func() { runnerDone <- runner.Run(ctx) }()

	svc := session.NewService(sess, st, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
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
		w.Write([]byte(`{"status":"ok","service":"paper-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for ticks, events, trades and mission updates.
		r.Get("/ws", wsHub.HandleWS)
		svc.Register(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("paper-engine listening", "port", cfg.Server.Port, "session", sess.ID())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down paper-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if err := <-runnerDone; err != nil {
		slog.Error("final snapshot failed", "err", err)
	}
	fmt.Println("paper-engine stopped")
}

func snapTick(s *model.Snapshot) int64 {
	if s == nil || s.Market == nil {
		return 0
	}
	return s.Market.Tick
}
