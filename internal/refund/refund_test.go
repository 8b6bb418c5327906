package refund

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-transit/harrier/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func defaultConfig() domain.RefundConfig {
	return domain.RefundConfig{
		GateMode:      domain.GateAbsolute,
		UnitPrice:     500,
		CapMode:       domain.CapFixed,
		FixedCapL:     1000,
		CapVehicleCol: domain.ColSubsidyCap,
	}
}

func row(vehicleID string, actual, expected float64) domain.VehicleSummary {
	return domain.VehicleSummary{
		VehicleID:     vehicleID,
		ActualFuelL:   actual,
		ExpectedFuelL: expected,
		ExpectedLow:   expected * 0.9,
		ExpectedHigh:  expected * 1.1,
	}
}

func TestAbsoluteGate(t *testing.T) {
	tests := []struct {
		name       string
		actual     float64
		expected   float64
		wantPass   bool
		wantReason string
	}{
		{"within bound", 100, 100, true, "PASS"},
		{"exactly at bound", 110, 100, true, "PASS"},
		{"over bound", 150, 100, false, "FAIL_FUEL_GT_EXPECTED_HIGH"},
		{"zero fuel passes", 0, 100, true, "PASS"},
	}

	engine, err := New(defaultConfig())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []domain.VehicleSummary{row("V1", tt.actual, tt.expected)}
			if err := engine.Decide(&domain.Batch{}, rows); err != nil {
				t.Fatalf("decide failed: %v", err)
			}

			s := rows[0]
			if s.GatePass != tt.wantPass {
				t.Errorf("gate_pass: expected %v, got %v", tt.wantPass, s.GatePass)
			}
			if s.GateReason != tt.wantReason {
				t.Errorf("gate_reason: expected %q, got %q", tt.wantReason, s.GateReason)
			}
			wantMetric := tt.actual - tt.expected*1.1
			if math.Abs(s.GateMetric-wantMetric) > 1e-9 {
				t.Errorf("gate_metric: expected %.2f, got %.2f", wantMetric, s.GateMetric)
			}
			if s.GateReason == "" {
				t.Error("gate_reason must never be blank")
			}
		})
	}
}

func TestRatioGate(t *testing.T) {
	cfg := defaultConfig()
	cfg.GateMode = domain.GateRatio
	cfg.RatioThreshold = 1.10

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	tests := []struct {
		name     string
		actual   float64
		expected float64
		wantPass bool
	}{
		{"ratio under threshold", 100, 100, true},
		{"ratio over threshold", 150, 100, false},
		{"zero expected counts as passing", 80, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []domain.VehicleSummary{row("V1", tt.actual, tt.expected)}
			if err := engine.Decide(&domain.Batch{}, rows); err != nil {
				t.Fatalf("decide failed: %v", err)
			}

			s := rows[0]
			if s.GatePass != tt.wantPass {
				t.Errorf("gate_pass: expected %v, got %v", tt.wantPass, s.GatePass)
			}
			if !tt.wantPass && s.GateReason != "FAIL_RATIO_GT_1.1" {
				t.Errorf("gate_reason: expected FAIL_RATIO_GT_1.1, got %q", s.GateReason)
			}
		})
	}
}

func TestRefundCapping(t *testing.T) {
	cfg := defaultConfig()
	cfg.FixedCapL = 120

	engine, _ := New(cfg)

	rows := []domain.VehicleSummary{
		row("V1", 100, 100), // passes, under cap
		row("V2", 150, 200), // passes, over cap
		row("V3", 150, 100), // fails gate
	}
	if err := engine.Decide(&domain.Batch{}, rows); err != nil {
		t.Fatalf("decide failed: %v", err)
	}

	if rows[0].RefundLiter != 100 {
		t.Errorf("V1 refund_liter: expected 100, got %.1f", rows[0].RefundLiter)
	}
	if rows[0].RefundAmount != 50000 {
		t.Errorf("V1 refund_amount: expected 50000, got %.0f", rows[0].RefundAmount)
	}
	if rows[0].RefundStatus != domain.RefundApprove {
		t.Errorf("V1 refund_status: expected APPROVE, got %s", rows[0].RefundStatus)
	}

	if rows[1].RefundLiter != 120 {
		t.Errorf("V2 refund_liter capped: expected 120, got %.1f", rows[1].RefundLiter)
	}

	if rows[2].RefundLiter != 0 || rows[2].RefundAmount != 0 {
		t.Errorf("failed gate must zero the refund: %+v", rows[2])
	}
	if rows[2].RefundStatus != domain.RefundHold {
		t.Errorf("V3 refund_status: expected HOLD, got %s", rows[2].RefundStatus)
	}

	// The core invariant: refund never exceeds the cap or the actual fuel.
	for _, s := range rows {
		if s.RefundLiter > s.SubsidyCapL || s.RefundLiter > math.Max(s.ActualFuelL, 0) {
			t.Errorf("%s: refund_liter %.1f exceeds bounds (cap %.1f, actual %.1f)",
				s.VehicleID, s.RefundLiter, s.SubsidyCapL, s.ActualFuelL)
		}
	}
}

func TestCapByTonClass(t *testing.T) {
	cfg := defaultConfig()
	cfg.CapMode = domain.CapByTonClass
	cfg.CapByTonClass = map[int]float64{5: 1000, 8: 1200}
	cfg.FixedCapL = 700

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	tests := []struct {
		name     string
		tonClass string
		wantCap  float64
	}{
		{"known class", "5", 1000},
		{"other known class", "8", 1200},
		{"missing class falls back to fixed cap", "12", 700},
		{"unparsable class falls back to fixed cap", "heavy", 700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := row("V1", 50, 100)
			s.TonClass = tt.tonClass
			rows := []domain.VehicleSummary{s}

			if err := engine.Decide(&domain.Batch{}, rows); err != nil {
				t.Fatalf("decide failed: %v", err)
			}
			if rows[0].SubsidyCapL != tt.wantCap {
				t.Errorf("subsidy_cap_l: expected %.0f, got %.0f", tt.wantCap, rows[0].SubsidyCapL)
			}
		})
	}
}

func TestCapByVehicleColumn(t *testing.T) {
	cfg := defaultConfig()
	cfg.CapMode = domain.CapByVehicleCol

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	batch := &domain.Batch{
		Profiles: []domain.VehicleProfile{
			{VehicleID: "V1", SubsidyCapL: ptr(800)},
			{VehicleID: "V2"}, // missing value coerces to zero
		},
		ProfileColumns: []string{domain.ColSubsidyCap},
	}
	rows := []domain.VehicleSummary{row("V1", 900, 1000), row("V2", 50, 100)}

	if err := engine.Decide(batch, rows); err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if rows[0].SubsidyCapL != 800 || rows[0].RefundLiter != 800 {
		t.Errorf("V1: expected cap 800 applied, got cap %.0f refund %.0f",
			rows[0].SubsidyCapL, rows[0].RefundLiter)
	}
	if rows[1].SubsidyCapL != 0 || rows[1].RefundLiter != 0 {
		t.Errorf("V2: missing cap value should zero the refund, got %+v", rows[1])
	}
}

func TestFatalConfigErrors(t *testing.T) {
	t.Run("invalid cap mode", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.CapMode = "per_driver"
		if _, err := New(cfg); !errors.Is(err, ErrInvalidCapMode) {
			t.Errorf("expected ErrInvalidCapMode, got %v", err)
		}
	})

	t.Run("empty ton class table", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.CapMode = domain.CapByTonClass
		cfg.CapByTonClass = nil
		if _, err := New(cfg); !errors.Is(err, ErrEmptyTonClassTable) {
			t.Errorf("expected ErrEmptyTonClassTable, got %v", err)
		}
	})

	t.Run("missing cap column aborts before any refund row", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.CapMode = domain.CapByVehicleCol

		engine, err := New(cfg)
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}

		batch := &domain.Batch{
			Profiles: []domain.VehicleProfile{{VehicleID: "V1"}},
			// ProfileColumns omits subsidy_cap_l entirely.
		}
		rows := []domain.VehicleSummary{row("V1", 50, 100)}

		if err := engine.Decide(batch, rows); !errors.Is(err, ErrMissingCapColumn) {
			t.Fatalf("expected ErrMissingCapColumn, got %v", err)
		}
		if rows[0].GateReason != "" || rows[0].RefundStatus != "" {
			t.Errorf("no refund fields may be written on abort: %+v", rows[0])
		}
	})
}
