// Package worker provides async batch scoring for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-transit/harrier/internal/domain"
	"github.com/opensource-transit/harrier/internal/pipeline"
)

// Worker scores submitted batches asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	pipeline *pipeline.Pipeline
	runTTL   time.Duration

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// RunCacheTTL controls how long scored runs stay cached.
	RunCacheTTL time.Duration
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, p *pipeline.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		pipeline: p,
		runTTL:   time.Hour,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing batches for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.RunCacheTTL > 0 {
		w.runTTL = cfg.RunCacheTTL
	}

	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicBatchSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicBatchSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processBatch(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicBatchSubmitted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processBatch(ctx, msg.TenantID, msg)
}

// processBatch scores one submitted batch through the pipeline.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var batch domain.Batch
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if batch.TenantID != "" {
		tenantID = batch.TenantID
	} else {
		batch.TenantID = tenantID
	}

	slog.Debug("scoring batch",
		"batch_id", batch.ID,
		"tenant_id", tenantID,
		"vehicles", len(batch.Profiles),
	)

	run, err := w.pipeline.Run(ctx, &batch)
	if err != nil {
		slog.Error("batch scoring failed",
			"batch_id", batch.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	// Persist the run snapshot
	if w.repo != nil {
		if err := w.repo.SaveRun(ctx, tenantID, run); err != nil {
			slog.Error("failed to save run",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		_ = w.cache.SetRun(ctx, tenantID, run.ID, run, w.runTTL)
	}

	// Publish the scored run
	runPayload, _ := json.Marshal(run)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicRunScored, runPayload); err != nil {
		slog.Error("failed to publish scored run",
			"run_id", run.ID,
			"error", err,
		)
	}
	if run.Refund != nil {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicRefundDecided, runPayload); err != nil {
			slog.Error("failed to publish refund decision",
				"run_id", run.ID,
				"error", err,
			)
		}
	}

	// High-tier vehicles get their own topic for review queues.
	if high := highRiskRows(run); len(high) > 0 {
		alertPayload, _ := json.Marshal(domain.HighRiskAlert{
			RunID:    run.ID,
			BatchID:  run.BatchID,
			Vehicles: high,
		})
		if err := w.bus.Publish(ctx, tenantID, domain.TopicHighRisk, alertPayload); err != nil {
			slog.Error("failed to publish high risk alert",
				"run_id", run.ID,
				"error", err,
			)
		}
	}

	slog.Info("batch scored",
		"batch_id", batch.ID,
		"run_id", run.ID,
		"tenant_id", tenantID,
		"vehicles", len(batch.Profiles),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// highRiskRows collects the HIGH tier rows from a scored run.
func highRiskRows(run *domain.ScoredRun) []domain.VehicleSummary {
	if run.Risk == nil {
		return nil
	}
	var high []domain.VehicleSummary
	for _, row := range run.Risk.Rows {
		if row.RiskTier == domain.TierHigh {
			high = append(high, row)
		}
	}
	return high
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
