// Harrier - Fleet fuel-subsidy risk scoring and refund decisions.
// Copyright (c) 2025 opensource.transit
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-transit/harrier/internal/api"
	"github.com/opensource-transit/harrier/internal/bus"
	"github.com/opensource-transit/harrier/internal/cache"
	"github.com/opensource-transit/harrier/internal/domain"
	"github.com/opensource-transit/harrier/internal/pipeline"
	"github.com/opensource-transit/harrier/internal/repository"
	"github.com/opensource-transit/harrier/internal/rules"
	"github.com/opensource-transit/harrier/internal/worker"
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
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Scoring variant can be switched without a policy change elsewhere
	if os.Getenv("HARRIER_SCORING_VARIANT") == "strict" {
		cfg.ScoringVariant = domain.VariantStrict
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"scoring_variant", cfg.ScoringVariant,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize Audit Rule Engine
	audit, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize audit rule engine", "error", err)
		os.Exit(1)
	}

	// Load audit rules from database (no hardcoded defaults - configure via API)
	if err := loadAuditRulesFromDatabase(ctx, repo, audit); err != nil {
		slog.Error("failed to load audit rules", "error", err)
		os.Exit(1)
	}
	slog.Info("audit rule engine initialized", "rules_count", audit.RulesCount())

	// Initialize Scoring Pipeline. Cap policy errors here are fatal:
	// a misconfigured cap table must not silently score batches.
	p, err := pipeline.New(cfg, audit)
	if err != nil {
		slog.Error("failed to initialize scoring pipeline", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring pipeline initialized", "engine_version", pipeline.EngineVersion)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, p)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, p, audit, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
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

	slog.Info("harrier shutdown complete")
}

// loadAuditRulesFromDatabase loads audit rules from the database into the
// engine. All rules must be configured via POST /audit-rules - no
// hardcoded defaults.
func loadAuditRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListAuditRules(ctx, api.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list audit rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading audit rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no audit rules in database - configure via POST /audit-rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║     Fuel Subsidy Risk Scoring Engine      ║")
	fmt.Println("  ║      Every liter accounted for.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score               - Score a vehicle batch")
	fmt.Println("    POST /batches             - Submit a batch for async scoring")
	fmt.Println("    GET  /runs/{id}           - Get a scored run by ID")
	fmt.Println("    GET  /runs/{id}/risk      - Get the risk report of a run")
	fmt.Println("    GET  /runs/{id}/refund    - Get the refund report of a run")
	fmt.Println("    GET  /audit-rules         - List all audit rules")
	fmt.Println("    POST /audit-rules         - Create a new audit rule")
	fmt.Println("    DELETE /audit-rules/{id}  - Delete an audit rule")
	fmt.Println("    POST /audit-rules/reload  - Hot-reload rules from database")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
