package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-transit/harrier/internal/domain"
	"github.com/opensource-transit/harrier/internal/pipeline"
	"github.com/opensource-transit/harrier/internal/rules"
)

// runCacheTTL is how long scored runs stay cached for report reads.
const runCacheTTL = time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	pipeline *pipeline.Pipeline
	audit    *rules.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, p *pipeline.Pipeline, audit *rules.Engine, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		pipeline: p,
		audit:    audit,
		version:  version,
	}
}

// ScoreRequest is the request body for POST /score.
type ScoreRequest struct {
	BatchID        string                   `json:"batchId,omitempty"`
	Profiles       []domain.VehicleProfile  `json:"profiles"`
	Telemetry      []domain.TelemetryRecord `json:"telemetry"`
	Transactions   []domain.FuelTransaction `json:"transactions"`
	ProfileColumns []string                 `json:"profileColumns,omitempty"`

	// RiskOnly skips the refund gate and calculator.
	RiskOnly bool `json:"riskOnly,omitempty"`
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	RunID    string             `json:"runId"`
	BatchID  string             `json:"batchId"`
	Risk     *domain.Report     `json:"risk"`
	Refund   *domain.Report     `json:"refund,omitempty"`
	Metadata domain.RunMetadata `json:"metadata"`
}

// Score handles POST /score requests: synchronous whole-batch scoring.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Profiles) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profiles are required",
		})
		return
	}

	batch := &domain.Batch{
		ID:             req.BatchID,
		TenantID:       tenantID,
		Profiles:       req.Profiles,
		Telemetry:      req.Telemetry,
		Transactions:   req.Transactions,
		ProfileColumns: req.ProfileColumns,
	}
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	var run *domain.ScoredRun
	var err error
	if req.RiskOnly {
		run, err = h.pipeline.ScoreRisk(ctx, batch)
	} else {
		run, err = h.pipeline.Run(ctx, batch)
	}
	if err != nil {
		slog.Error("batch scoring failed",
			"batch_id", batch.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}
	run.Metadata.TraceID = traceID

	// Persist the immutable snapshot
	if h.repo != nil {
		if err := h.repo.SaveRun(ctx, tenantID, run); err != nil {
			slog.Error("failed to save run", "run_id", run.ID, "error", err)
		}
	}
	if h.cache != nil {
		_ = h.cache.SetRun(ctx, tenantID, run.ID, run, runCacheTTL)
	}

	// Notify downstream consumers
	if h.bus != nil {
		payload, _ := json.Marshal(run)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicRunScored, payload); err != nil {
			slog.Error("failed to publish scored run", "run_id", run.ID, "error", err)
		}
	}

	slog.Info("batch scored",
		"batch_id", batch.ID,
		"run_id", run.ID,
		"tenant_id", tenantID,
		"vehicles", run.Metadata.Vehicles,
		"duration_ms", run.Metadata.TotalMs,
	)

	writeJSON(w, http.StatusOK, ScoreResponse{
		RunID:    run.ID,
		BatchID:  run.BatchID,
		Risk:     run.Risk,
		Refund:   run.Refund,
		Metadata: run.Metadata,
	})
}

// SubmitBatch handles POST /batches: async scoring via the event bus.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Profiles) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profiles are required",
		})
		return
	}

	batch := &domain.Batch{
		ID:             req.BatchID,
		TenantID:       tenantID,
		Profiles:       req.Profiles,
		Telemetry:      req.Telemetry,
		Transactions:   req.Transactions,
		ProfileColumns: req.ProfileColumns,
	}
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	payload, _ := json.Marshal(batch)
	if err := h.bus.Publish(ctx, tenantID, domain.TopicBatchSubmitted, payload); err != nil {
		slog.Error("failed to publish batch", "batch_id", batch.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit batch",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"batchId": batch.ID,
		"status":  "submitted",
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// getRun loads a run from cache first, then the repository.
func (h *Handler) getRun(r *http.Request, runID string) (*domain.ScoredRun, error) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.cache != nil {
		if run, err := h.cache.GetRun(ctx, tenantID, runID); err == nil && run != nil {
			return run, nil
		}
	}

	run, err := h.repo.GetRun(ctx, tenantID, runID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.SetRun(ctx, tenantID, runID, run, runCacheTTL)
	}
	return run, nil
}

// GetRun retrieves a scored run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.getRun(r, runID)
	if err != nil {
		slog.Error("failed to get run", "id", runID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// GetRiskReport retrieves the risk report of a scored run.
func (h *Handler) GetRiskReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.getRun(r, runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, run.Risk)
}

// GetRefundReport retrieves the refund report of a scored run.
func (h *Handler) GetRefundReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.getRun(r, runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	if run.Refund == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run has no refund report",
		})
		return
	}

	writeJSON(w, http.StatusOK, run.Refund)
}

// ListAuditRules returns all loaded audit rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /audit-rules/reload.
func (h *Handler) ListAuditRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.audit.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetAuditRule retrieves an audit rule by ID from the loaded engine rules.
func (h *Handler) GetAuditRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.audit.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateAuditRuleRequest is the request body for creating an audit rule.
type CreateAuditRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Tag         string `json:"tag"`
	Enabled     bool   `json:"enabled"`
}

// GlobalTenantID is used for audit rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateAuditRule creates a new audit rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /audit-rules/reload to hot-reload into the engine.
func (h *Handler) CreateAuditRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateAuditRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and tag are required",
		})
		return
	}

	rule := &domain.AuditRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Tag:         req.Tag,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.audit.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveAuditRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save audit rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("audit rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /audit-rules/reload to apply changes.",
	})
}

// DeleteAuditRule deletes an audit rule and auto-reloads the engine.
func (h *Handler) DeleteAuditRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteAuditRule(ctx, GlobalTenantID, ruleID); err != nil {
			slog.Error("failed to delete audit rule", "id", ruleID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}

		// Auto-reload after delete
		dbRules, err := h.repo.ListAuditRules(ctx, GlobalTenantID)
		if err != nil {
			slog.Error("failed to reload audit rules after delete", "error", err)
		} else if err := h.audit.ReloadRules(dbRules); err != nil {
			slog.Error("failed to reload audit rules into engine", "error", err)
		}
	}

	slog.Info("audit rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadAuditRules reloads all audit rules from the database into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadAuditRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListAuditRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list audit rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.audit.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload audit rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("audit rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
