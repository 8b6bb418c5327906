package domain

import (
	"time"
)

// RiskTier is the discrete risk classification derived from the score.
type RiskTier string

const (
	TierHigh   RiskTier = "HIGH"
	TierMedium RiskTier = "MEDIUM"
	TierLow    RiskTier = "LOW"
	TierNone   RiskTier = "NONE"
)

// GateStatus is the refund eligibility gate outcome.
type GateStatus string

const (
	GatePass GateStatus = "PASS"
	GateFail GateStatus = "FAIL"
)

// RefundStatus is the final refund decision.
type RefundStatus string

const (
	RefundApprove RefundStatus = "APPROVE"
	RefundHold    RefundStatus = "HOLD"
)

// VehicleSummary is the single mutable work record, one per vehicle.
// It is built once by left-joining the profile with telemetry and
// transaction aggregates and then enriched in place: aggregates,
// expected-fuel bounds, indicators, scores, and (separately) the gate
// and refund fields. Only the final snapshot is ever persisted.
type VehicleSummary struct {
	// Profile carry-over
	VehicleID     string   `json:"vehicle_id"`
	VehicleNo     string   `json:"vehicle_no"`
	TonClass      string   `json:"ton_class"`
	FuelType      string   `json:"fuel_type"`
	AvgEffKmPerL  float64  `json:"avg_eff_km_per_l"`
	TankCapacityL *float64 `json:"tank_capacity_l,omitempty"`

	// Telemetry aggregates
	TotalDistanceKm  float64 `json:"total_distance_km"`
	TotalDriveTimeHr float64 `json:"total_drive_time_hr"`
	TotalIdleTimeMin float64 `json:"total_idle_time_min"`

	// Transaction aggregates
	ActualFuelL    float64 `json:"actual_fuel_l"`
	RefuelCnt      int     `json:"refuel_cnt"`
	NightRefuelCnt int     `json:"night_refuel_cnt"`

	// Expected-fuel bounds
	ExpectedFuelL float64 `json:"expected_fuel_l"`
	ExpectedLow   float64 `json:"expected_low"`
	ExpectedHigh  float64 `json:"expected_high"`

	// Indicators
	IndOverTank        bool    `json:"ind_over_tank"`
	IndOverTankCnt     int     `json:"ind_over_tank_cnt"`
	IndMaxDailyRefuel  int     `json:"ind_max_daily_refuel"`
	IndFuelRatio       float64 `json:"ind_fuel_ratio"`
	IndFuelOverL       float64 `json:"ind_fuel_over_l"`
	IndFuelUnderL      float64 `json:"ind_fuel_under_l"`
	IndStationMaxShare float64 `json:"ind_station_max_share"`
	ScoreStationConc   float64 `json:"score_station_conc"`

	// Risk scoring
	ScoreOverTank    float64  `json:"score_over_tank"`
	ScoreDailyRefuel float64  `json:"score_daily_refuel"`
	ScoreFuelOver    float64  `json:"score_fuel_over"`
	ScoreFuelUnder   float64  `json:"score_fuel_under"`
	ScoreStation     float64  `json:"score_station"`
	RiskScore        float64  `json:"risk_score"`
	RiskTier         RiskTier `json:"risk_tier"`
	RiskReason       string   `json:"risk_reason"`

	// Refund gate
	GateMetric float64    `json:"gate_metric"`
	GatePass   bool       `json:"gate_pass"`
	GateReason string     `json:"gate_reason"`
	GateStatus GateStatus `json:"gate_status"`

	// Refund calculation
	SubsidyCapL  float64      `json:"subsidy_cap_l"`
	UnitPrice    float64      `json:"unit_price"`
	RefundLiter  float64      `json:"refund_liter"`
	RefundAmount float64      `json:"refund_amount"`
	RefundStatus RefundStatus `json:"refund_status"`
}

// RiskReportColumns is the risk report column order, preserved exactly
// for downstream compatibility.
var RiskReportColumns = []string{
	"vehicle_id", "vehicle_no", "ton_class", "fuel_type",
	"total_distance_km", "expected_fuel_l", "expected_low", "expected_high",
	"actual_fuel_l", "refuel_cnt", "night_refuel_cnt",
	"ind_over_tank", "ind_over_tank_cnt", "ind_max_daily_refuel",
	"ind_fuel_ratio", "ind_station_max_share",
	"score_over_tank", "score_daily_refuel", "score_fuel_over", "score_fuel_under", "score_station",
	"risk_score", "risk_tier", "risk_reason",
}

// RefundReportColumns adjoins the gate and refund columns to the risk
// report key columns.
var RefundReportColumns = append(append([]string{}, RiskReportColumns...),
	"gate_metric", "gate_pass", "gate_reason", "gate_status",
	"subsidy_cap_l", "unit_price", "refund_liter", "refund_amount", "refund_status",
)

// Report is one result table: an ordered column list plus one enriched
// summary row per vehicle.
type Report struct {
	Columns []string         `json:"columns"`
	Rows    []VehicleSummary `json:"rows"`
}

// ScoredRun is the persisted outcome of scoring one batch.
type ScoredRun struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	BatchID   string    `json:"batchId"`
	Timestamp time.Time `json:"timestamp"`

	Risk   *Report `json:"risk"`
	Refund *Report `json:"refund,omitempty"`

	// AuditFlags holds supplementary operator-defined flags per vehicle,
	// keyed by vehicle_id. Kept apart from the fixed risk_reason tag set.
	AuditFlags map[string][]AuditFlag `json:"auditFlags,omitempty"`

	Metadata RunMetadata `json:"metadata"`
}

// RunMetadata carries processing information for one run.
type RunMetadata struct {
	TraceID        string `json:"traceId"`
	Vehicles       int    `json:"vehicles"`
	Telemetry      int    `json:"telemetryRows"`
	Transactions   int    `json:"transactionRows"`
	AuditRules     int    `json:"auditRulesEvaluated"`
	AggregateMs    int64  `json:"aggregateMs"`
	IndicatorMs    int64  `json:"indicatorMs"`
	ScoreMs        int64  `json:"scoreMs"`
	RefundMs       int64  `json:"refundMs"`
	TotalMs        int64  `json:"totalMs"`
	ScoringVariant string `json:"scoringVariant"`
	EngineVersion  string `json:"engineVersion"`
}
