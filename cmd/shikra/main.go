// Shikra - Multi-signal UPI fraud scoring.
// Copyright (c) 2025 upishield
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/upishield/shikra/internal/api"
	"github.com/upishield/shikra/internal/bus"
	"github.com/upishield/shikra/internal/cache"
	"github.com/upishield/shikra/internal/detector"
	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/engine"
	"github.com/upishield/shikra/internal/history"
	"github.com/upishield/shikra/internal/pipeline"
	"github.com/upishield/shikra/internal/repository"
	"github.com/upishield/shikra/internal/rules"
	"github.com/upishield/shikra/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SHIKRA_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting shikra",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("SHIKRA_MODE") == "cluster" {
		cfg = domain.ClusterConfig()
		slog.Info("running in cluster mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"fraud_threshold", cfg.Detection.FraudThreshold,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize History Service
	historySvc := history.NewService(repo, cacheImpl, cfg.Detection.HistoryLimit)
	slog.Info("history service initialized", "limit", cfg.Detection.HistoryLimit)

	// Initialize Pattern Catalog
	catalog, err := rules.NewCatalog()
	if err != nil {
		slog.Error("failed to initialize pattern catalog", "error", err)
		os.Exit(1)
	}
	if err := loadPatterns(ctx, repo, catalog); err != nil {
		slog.Error("failed to load patterns", "error", err)
		os.Exit(1)
	}
	slog.Info("pattern catalog initialized", "patterns_count", catalog.Count())

	// Initialize Detectors and Scoring Engine
	behavioral := detector.NewBehavioral(repo, historySvc)
	patternMatcher := detector.NewPatternMatcher(catalog)
	anomaly := detector.NewAnomaly(historySvc)
	blacklist := detector.NewBlacklist(repo)

	scoringEngine := engine.New(behavioral, patternMatcher, anomaly, blacklist, cfg.Detection)
	slog.Info("scoring engine initialized",
		"fraud_threshold", cfg.Detection.FraudThreshold,
		"detector_timeout", cfg.Detection.DetectorTimeout.String(),
	)

	// Initialize Pipeline Processor
	processor := pipeline.NewProcessor(scoringEngine, repo, busImpl, cacheImpl, historySvc)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if os.Getenv("SHIKRA_ASYNC_WORKER") != "false" {
		asyncWorker = worker.NewWorker(busImpl, processor)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, catalog, processor, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("shikra is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("shikra shutdown complete")
}

// loadPatterns loads the active patterns from the store. An empty
// store is seeded with the builtin UPI scam patterns first.
func loadPatterns(ctx context.Context, repo domain.Repository, catalog *rules.Catalog) error {
	patterns, err := repo.ListActivePatterns(ctx)
	if err != nil {
		return err
	}

	if len(patterns) == 0 {
		slog.Info("pattern store empty, seeding builtin patterns")
		for _, p := range rules.BuiltinPatterns() {
			if err := repo.SavePattern(ctx, p); err != nil {
				return fmt.Errorf("failed to seed pattern %s: %w", p.ID, err)
			}
		}
	}

	return catalog.ReloadFromStore(ctx, repo)
}

// applyEnvOverrides lets individual settings be tuned via SHIKRA_* env vars.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("SHIKRA_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SHIKRA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SHIKRA_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("SHIKRA_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("SHIKRA_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("SHIKRA_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("SHIKRA_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("SHIKRA_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("SHIKRA_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("SHIKRA_FRAUD_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil && threshold > 0 {
			cfg.Detection.FraudThreshold = threshold
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 SHIKRA                   ║")
	fmt.Println("  ║       UPI Fraud Scoring Engine            ║")
	fmt.Println("  ║    Every rupee, every signal.             ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /transactions        - Score a transaction")
	fmt.Println("    POST /transactions/async  - Queue a transaction for scoring")
	fmt.Println("    POST /csv-upload          - Batch score a CSV file")
	fmt.Println("    GET  /transactions/{id}   - Get transaction by ID")
	fmt.Println("    GET  /alerts              - List fraud alerts")
	fmt.Println("    POST /alerts/{id}/status  - Transition an alert")
	fmt.Println("    GET  /patterns            - List fraud patterns")
	fmt.Println("    POST /patterns            - Create a fraud pattern")
	fmt.Println("    POST /patterns/reload     - Hot-reload patterns")
	fmt.Println("    GET  /blacklist           - List blacklist entries")
	fmt.Println("    POST /blacklist           - Report an identifier")
	fmt.Println("    GET  /profiles/{upi}      - Get sender profile")
	fmt.Println("    GET  /stats/fraud         - Aggregate fraud stats")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
