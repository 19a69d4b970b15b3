// Command ascension serves the Path of Ascension simulation engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/ascension/internal/api"
	"github.com/talgya/ascension/internal/config"
	"github.com/talgya/ascension/internal/engine"
	"github.com/talgya/ascension/internal/entropy"
	"github.com/talgya/ascension/internal/game"
	"github.com/talgya/ascension/internal/persistence"
	"github.com/talgya/ascension/internal/stream"
	"github.com/talgya/ascension/internal/telemetry"
	"github.com/talgya/ascension/internal/tide"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ascension failed", "error", err)
		os.Exit(1)
	}
}

// run wires the engine and serves until a signal arrives. Deferred
// cleanup runs on every return path.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("Path of Ascension simulation engine",
		"max_advance_hours", cfg.MaxAdvanceHours,
		"default_multiplier", cfg.DefaultTimeMultiplier,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Tracing ───────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, "ascension", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()
	if cfg.OTelEndpoint != "" && cfg.OTelEnabled {
		slog.Info("tracing enabled", "endpoint", cfg.OTelEndpoint)
	}

	// ── Storage ───────────────────────────────────────────────────────
	var store game.Store
	var db *persistence.DB
	if cfg.DBPath == "" {
		store = persistence.NewMemory()
		slog.Warn("ASCENSION_DB_PATH empty: game states live in memory only")
	} else {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err = persistence.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		store = db
		slog.Info("database opened", "path", cfg.DBPath)

		if last, err := db.GetMeta("last_shutdown"); err == nil {
			slog.Info("resuming", "last_shutdown", last)
		}
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulator()
	sim.MaxHours = cfg.MaxAdvanceHours
	if cfg.TidesEnabled {
		tc := tide.DefaultConfig()
		tc.Seed = cfg.TideSeed
		sim.Tides = tide.New(tc)
		slog.Info("qi tides enabled", "seed", tc.Seed)
	}

	randomOrg := entropy.NewClient(cfg.RandomOrgKey)
	if randomOrg.Enabled() {
		slog.Info("random.org entropy enabled")
	}
	if cfg.Seed != 0 {
		slog.Warn("deterministic rolls enabled", "seed", cfg.Seed)
	}
	rng := entropy.NewFactory(randomOrg, cfg.Seed)

	hub := stream.NewHub(cfg.WSMaxConnections, cfg.WSBuffer)
	svc := game.NewService(sim, store, hub, rng, game.Options{
		TimeMultiplier: cfg.DefaultTimeMultiplier,
	})

	// ── Automatic clock ───────────────────────────────────────────────
	var clock *engine.Clock
	if cfg.AutoAdvanceInterval > 0 {
		clock = engine.NewClock(cfg.AutoAdvanceInterval)
		clock.OnAdvance = func(ctx context.Context, step uint64) {
			if _, err := svc.AdvanceAll(ctx, cfg.AutoAdvanceHours); err != nil {
				slog.Error("automatic advance failed", "step", step, "error", err)
			}
		}
		go clock.Run(ctx)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("ASCENSION_ADMIN_KEY not set: POST endpoints are open")
	}
	ws := stream.NewHandler(hub, cfg.WSHeartbeat)
	ws.OriginPatterns = cfg.WSOrigins

	apiServer := &api.Server{
		Games:    svc,
		Hub:      hub,
		Stream:   ws,
		Clock:    clock,
		Limiter:  api.NewRateLimiter(cfg.AdvanceRateLimit, time.Hour),
		Port:     cfg.Port,
		AdminKey: cfg.AdminKey,
		Origins:  cfg.WSOrigins,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("\nAscension is listening: http://localhost:%d/api/v1/status\n", cfg.Port)
	if clock != nil {
		fmt.Printf("Advancing every %s by %d hour(s) per game (Ctrl+C to stop)\n", cfg.AutoAdvanceInterval, cfg.AutoAdvanceHours)
	}

	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	cancel()
	if clock != nil {
		clock.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	hub.Shutdown()

	if db != nil {
		if err := db.SaveMeta("last_shutdown", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Error("shutdown marker save failed", "error", err)
		}
	}
	fmt.Println("Ascension stopped.")
	return nil
}
