// Package pipeline orchestrates one whole-batch scoring run: aggregation,
// indicator derivation, risk scoring, and the refund decision. A run is
// single-threaded and in-memory; the summary table is owned exclusively
// by the run until its final snapshot is emitted.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-transit/harrier/internal/aggregate"
	"github.com/opensource-transit/harrier/internal/domain"
	"github.com/opensource-transit/harrier/internal/indicator"
	"github.com/opensource-transit/harrier/internal/refund"
	"github.com/opensource-transit/harrier/internal/risk"
	"github.com/opensource-transit/harrier/internal/rules"
)

// EngineVersion is stamped into run metadata.
const EngineVersion = "harrier-1.0"

// Pipeline scores closed batches of vehicles. It is safe for concurrent
// use: each run works on its own summary table.
type Pipeline struct {
	indicators *indicator.Engine
	scorer     risk.Scorer
	refund     *refund.Engine
	audit      *rules.Engine
}

// New builds a pipeline from configuration. Batch-independent refund
// policy errors (bad cap mode, empty ton-class table) surface here,
// before any batch is accepted.
func New(cfg *domain.Config, audit *rules.Engine) (*Pipeline, error) {
	refundEngine, err := refund.New(cfg.Refund)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		indicators: indicator.New(cfg.Pipeline),
		scorer:     risk.New(cfg.ScoringVariant),
		refund:     refundEngine,
		audit:      audit,
	}, nil
}

// Run scores a batch and produces both result tables. A batch-dependent
// refund configuration error (missing cap column) aborts the run with no
// partial refund table; use ScoreRisk when only the risk report is
// needed, since it cannot be affected by refund policy errors.
func (p *Pipeline) Run(ctx context.Context, batch *domain.Batch) (*domain.ScoredRun, error) {
	return p.run(ctx, batch, true)
}

// ScoreRisk scores a batch and produces only the risk report.
func (p *Pipeline) ScoreRisk(ctx context.Context, batch *domain.Batch) (*domain.ScoredRun, error) {
	return p.run(ctx, batch, false)
}

func (p *Pipeline) run(ctx context.Context, batch *domain.Batch, withRefund bool) (*domain.ScoredRun, error) {
	tracer := otel.Tracer("harrier/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", batch.ID),
		attribute.Int("batch.vehicles", len(batch.Profiles)),
	)

	start := time.Now()
	run := &domain.ScoredRun{
		ID:        uuid.New().String(),
		TenantID:  batch.TenantID,
		BatchID:   batch.ID,
		Timestamp: time.Now().UTC(),
	}

	// Aggregate
	aggStart := time.Now()
	summaries := aggregate.Summarize(batch)
	aggMs := time.Since(aggStart).Milliseconds()

	// Indicators
	indStart := time.Now()
	summaries = p.indicators.Enrich(batch, summaries)
	indMs := time.Since(indStart).Milliseconds()

	// Risk scoring
	scoreStart := time.Now()
	for i := range summaries {
		p.scorer.Score(&summaries[i])
	}
	scoreMs := time.Since(scoreStart).Milliseconds()

	run.Risk = riskReport(summaries)
	run.AuditFlags = p.auditFlags(summaries)

	// Refund decision: operates on its own copy so the risk report stays
	// untouched by refund-side failures.
	var refundMs int64
	if withRefund {
		refundStart := time.Now()
		rows := make([]domain.VehicleSummary, len(summaries))
		copy(rows, summaries)
		if err := p.refund.Decide(batch, rows); err != nil {
			return nil, err
		}
		run.Refund = &domain.Report{
			Columns: domain.RefundReportColumns,
			Rows:    rows,
		}
		refundMs = time.Since(refundStart).Milliseconds()
	}

	auditRules := 0
	if p.audit != nil {
		auditRules = p.audit.RulesCount()
	}

	run.Metadata = domain.RunMetadata{
		Vehicles:       len(batch.Profiles),
		Telemetry:      len(batch.Telemetry),
		Transactions:   len(batch.Transactions),
		AuditRules:     auditRules,
		AggregateMs:    aggMs,
		IndicatorMs:    indMs,
		ScoreMs:        scoreMs,
		RefundMs:       refundMs,
		TotalMs:        time.Since(start).Milliseconds(),
		ScoringVariant: string(p.scorer.Variant()),
		EngineVersion:  EngineVersion,
	}

	return run, nil
}

// riskReport orders rows by risk_score descending with vehicle_id
// ascending as the tiebreak.
func riskReport(summaries []domain.VehicleSummary) *domain.Report {
	rows := make([]domain.VehicleSummary, len(summaries))
	copy(rows, summaries)

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RiskScore != rows[j].RiskScore {
			return rows[i].RiskScore > rows[j].RiskScore
		}
		return rows[i].VehicleID < rows[j].VehicleID
	})

	return &domain.Report{
		Columns: domain.RiskReportColumns,
		Rows:    rows,
	}
}

// auditFlags evaluates the loaded audit rules over every scored row.
func (p *Pipeline) auditFlags(summaries []domain.VehicleSummary) map[string][]domain.AuditFlag {
	if p.audit == nil || p.audit.RulesCount() == 0 {
		return nil
	}

	flags := make(map[string][]domain.AuditFlag)
	for i := range summaries {
		if triggered := p.audit.Evaluate(&summaries[i]); len(triggered) > 0 {
			flags[summaries[i].VehicleID] = triggered
		}
	}
	if len(flags) == 0 {
		return nil
	}
	return flags
}
