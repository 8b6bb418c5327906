// Package refund implements the refund eligibility gate and the capped
// refund calculator.
package refund

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/opensource-transit/harrier/internal/domain"
)

var (
	// ErrInvalidCapMode is returned for an unrecognized cap mode.
	ErrInvalidCapMode = errors.New("invalid cap mode")

	// ErrEmptyTonClassTable is returned when by_ton_class is selected
	// with no lookup entries.
	ErrEmptyTonClassTable = errors.New("cap_by_ton_class table is empty")

	// ErrMissingCapColumn is returned when by_vehicle_col references a
	// profile column the batch does not carry.
	ErrMissingCapColumn = errors.New("cap column not present in vehicle profile")
)

// Engine applies the gate and calculator to enriched summary rows.
type Engine struct {
	cfg domain.RefundConfig
}

// New validates the batch-independent parts of the refund policy and
// returns an engine. Configuration errors here are fatal: no refund row
// is ever produced from an invalid policy.
func New(cfg domain.RefundConfig) (*Engine, error) {
	if cfg.RatioThreshold <= 0 {
		cfg.RatioThreshold = 1.10
	}
	if cfg.GateMode == "" {
		cfg.GateMode = domain.GateAbsolute
	}
	if cfg.CapVehicleCol == "" {
		cfg.CapVehicleCol = domain.ColSubsidyCap
	}

	switch cfg.CapMode {
	case domain.CapFixed, domain.CapByVehicleCol:
	case domain.CapByTonClass:
		if len(cfg.CapByTonClass) == 0 {
			return nil, ErrEmptyTonClassTable
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCapMode, cfg.CapMode)
	}

	return &Engine{cfg: cfg}, nil
}

// Decide computes the gate outcome and refund fields for every row.
// Cap resolution runs first so a batch-dependent configuration error
// aborts before any refund field is written.
func (e *Engine) Decide(batch *domain.Batch, rows []domain.VehicleSummary) error {
	caps, err := e.capLiters(batch, rows)
	if err != nil {
		return err
	}

	for i := range rows {
		s := &rows[i]
		e.gate(s)
		s.SubsidyCapL = caps[i]
		s.UnitPrice = e.cfg.UnitPrice

		if s.GatePass {
			s.RefundLiter = math.Min(s.ActualFuelL, s.SubsidyCapL)
			s.RefundStatus = domain.RefundApprove
		} else {
			s.RefundLiter = 0
			s.RefundStatus = domain.RefundHold
		}
		s.RefundAmount = math.Round(s.RefundLiter * s.UnitPrice)
	}

	return nil
}

// gate applies the configured pass/fail policy. gate_reason is "PASS" or
// a specific failure code, never blank.
func (e *Engine) gate(s *domain.VehicleSummary) {
	if e.cfg.GateMode == domain.GateRatio {
		ratio := 0.0
		if s.ExpectedFuelL > 0 {
			ratio = s.ActualFuelL / s.ExpectedFuelL
		}
		s.GateMetric = ratio
		s.GatePass = ratio <= e.cfg.RatioThreshold
		if s.GatePass {
			s.GateReason = "PASS"
		} else {
			s.GateReason = fmt.Sprintf("FAIL_RATIO_GT_%v", e.cfg.RatioThreshold)
		}
	} else {
		s.GateMetric = s.ActualFuelL - s.ExpectedHigh
		s.GatePass = s.ActualFuelL <= s.ExpectedHigh
		if s.GatePass {
			s.GateReason = "PASS"
		} else {
			s.GateReason = "FAIL_FUEL_GT_EXPECTED_HIGH"
		}
	}

	if s.GatePass {
		s.GateStatus = domain.GatePass
	} else {
		s.GateStatus = domain.GateFail
	}
}

// capLiters resolves the per-vehicle cap according to the cap mode.
func (e *Engine) capLiters(batch *domain.Batch, rows []domain.VehicleSummary) ([]float64, error) {
	caps := make([]float64, len(rows))

	switch e.cfg.CapMode {
	case domain.CapFixed:
		for i := range caps {
			caps[i] = e.cfg.FixedCapL
		}

	case domain.CapByTonClass:
		for i := range rows {
			// Missing ton-class keys fall back to the fixed cap.
			if capL, ok := e.cfg.CapByTonClass[tonClassKey(rows[i].TonClass)]; ok {
				caps[i] = capL
			} else {
				caps[i] = e.cfg.FixedCapL
			}
		}

	case domain.CapByVehicleCol:
		col := e.cfg.CapVehicleCol
		if !batch.HasProfileColumn(col) {
			return nil, fmt.Errorf("%w: %q", ErrMissingCapColumn, col)
		}
		values, err := profileColumn(batch, col)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if v, ok := values[rows[i].VehicleID]; ok {
				caps[i] = v
			}
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCapMode, e.cfg.CapMode)
	}

	return caps, nil
}

// tonClassKey coerces the raw ton class to an integer lookup key;
// unparsable values map to -1.
func tonClassKey(raw string) int {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return int(f)
	}
	return -1
}

// profileColumn reads a named numeric column from the profiles. Only the
// declared optional columns can serve as a cap source; missing values
// coerce to zero.
func profileColumn(batch *domain.Batch, col string) (map[string]float64, error) {
	values := make(map[string]float64, len(batch.Profiles))
	for _, p := range batch.Profiles {
		var v *float64
		switch col {
		case domain.ColSubsidyCap:
			v = p.SubsidyCapL
		case domain.ColTankCapacity:
			v = p.TankCapacityL
		default:
			return nil, fmt.Errorf("%w: %q", ErrMissingCapColumn, col)
		}
		if v != nil {
			values[p.VehicleID] = *v
		}
	}
	return values, nil
}
