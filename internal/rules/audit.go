// Package rules provides the CEL-Go based audit rule engine. Audit rules
// are operator-defined boolean expressions over the enriched vehicle
// summary; triggered rules attach supplementary flags to the risk report
// without touching the fixed reason tag set.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-transit/harrier/internal/domain"
)

// Engine compiles and evaluates audit rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.AuditRule
	Program cel.Program
}

// NewEngine creates an audit rule engine with the summary row variables
// bound into the CEL environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("vehicle_id", cel.StringType),
		cel.Variable("ton_class", cel.StringType),
		cel.Variable("fuel_type", cel.StringType),
		cel.Variable("total_distance_km", cel.DoubleType),
		cel.Variable("actual_fuel_l", cel.DoubleType),
		cel.Variable("expected_fuel_l", cel.DoubleType),
		cel.Variable("expected_low", cel.DoubleType),
		cel.Variable("expected_high", cel.DoubleType),
		cel.Variable("refuel_cnt", cel.IntType),
		cel.Variable("night_refuel_cnt", cel.IntType),
		cel.Variable("ind_over_tank", cel.BoolType),
		cel.Variable("ind_over_tank_cnt", cel.IntType),
		cel.Variable("ind_max_daily_refuel", cel.IntType),
		cel.Variable("ind_fuel_ratio", cel.DoubleType),
		cel.Variable("ind_station_max_share", cel.DoubleType),
		cel.Variable("score_station_conc", cel.DoubleType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("risk_tier", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.AuditRule) error {
	if rule == nil {
		return fmt.Errorf("audit rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.AuditRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiled[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rules []*domain.AuditRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(rules []*domain.AuditRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		next[rule.ID] = compiled
	}

	e.compiled = next
	return nil
}

// Evaluate runs every loaded rule against one summary row and returns
// the triggered flags. Evaluation errors mute the rule for that row
// rather than failing the batch.
func (e *Engine) Evaluate(s *domain.VehicleSummary) []domain.AuditFlag {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		loaded = append(loaded, r)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil
	}

	activation := map[string]any{
		"vehicle_id":            s.VehicleID,
		"ton_class":             s.TonClass,
		"fuel_type":             s.FuelType,
		"total_distance_km":     s.TotalDistanceKm,
		"actual_fuel_l":         s.ActualFuelL,
		"expected_fuel_l":       s.ExpectedFuelL,
		"expected_low":          s.ExpectedLow,
		"expected_high":         s.ExpectedHigh,
		"refuel_cnt":            s.RefuelCnt,
		"night_refuel_cnt":      s.NightRefuelCnt,
		"ind_over_tank":         s.IndOverTank,
		"ind_over_tank_cnt":     s.IndOverTankCnt,
		"ind_max_daily_refuel":  s.IndMaxDailyRefuel,
		"ind_fuel_ratio":        s.IndFuelRatio,
		"ind_station_max_share": s.IndStationMaxShare,
		"score_station_conc":    s.ScoreStationConc,
		"risk_score":            s.RiskScore,
		"risk_tier":             string(s.RiskTier),
	}

	var flags []domain.AuditFlag
	for _, rule := range loaded {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if triggered, ok := out.(types.Bool); ok && bool(triggered) {
			flags = append(flags, domain.AuditFlag{
				RuleID:    rule.Rule.ID,
				VehicleID: s.VehicleID,
				Tag:       rule.Rule.Tag,
				Reason:    rule.Rule.Description,
			})
		}
	}
	return flags
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.AuditRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AuditRule, 0, len(e.compiled))
	for _, compiled := range e.compiled {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.AuditRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile audit rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("audit rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for audit rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}
