// Package risk maps the shared indicator set to weighted sub-scores, a
// total risk score, a discrete tier, and a reason tag string.
package risk

import (
	"math"
	"strings"

	"github.com/opensource-transit/harrier/internal/domain"
)

// Scorer scores one enriched summary row in place. Implementations are
// interchangeable: both derive tier and reason from the same pure row
// classifier, so swapping variants never changes classification behavior
// for identical sub-score outcomes.
type Scorer interface {
	// Score fills the five sub-score fields, risk_score, risk_tier and
	// risk_reason from the row's indicators.
	Score(s *domain.VehicleSummary)

	// Variant identifies the scoring strategy.
	Variant() domain.ScoringVariant
}

// New returns the scorer for the configured variant. Unknown variants
// fall back to weighted scoring.
func New(variant domain.ScoringVariant) Scorer {
	if variant == domain.VariantStrict {
		return &StrictScorer{}
	}
	return &WeightedScorer{}
}

// Tier thresholds, evaluated high to low.
const (
	tierHighMin   = 70
	tierMediumMin = 40
	tierLowMin    = 20
)

// Reason tag thresholds. Deliberately looser than the sub-score
// thresholds: a tag can appear even when its score contribution is small.
const (
	reasonMaxDailyMin = 4
	reasonRatioMin    = 1.10
	reasonStationMin  = 0.6
)

// Reason tags in their fixed output order.
const (
	TagOverTank      = "OVER_TANK"
	TagManyRefuels   = "MANY_REFUELS_PER_DAY"
	TagFuelOver      = "FUEL_OVER_EXPECTED"
	TagStationConc   = "STATION_CONCENTRATION"
	TagFuelUnder     = "FUEL_UNDER_EXPECTED"
)

// TierFor maps a risk score to its tier.
func TierFor(score float64) domain.RiskTier {
	switch {
	case score >= tierHighMin:
		return domain.TierHigh
	case score >= tierMediumMin:
		return domain.TierMedium
	case score >= tierLowMin:
		return domain.TierLow
	default:
		return domain.TierNone
	}
}

// ReasonFor builds the fixed-order reason tag string for one row.
// It is a pure function of the row's indicators; empty tags are omitted
// and the rest joined with "|".
func ReasonFor(s *domain.VehicleSummary) string {
	var tags []string
	if s.IndOverTank {
		tags = append(tags, TagOverTank)
	}
	if s.IndMaxDailyRefuel >= reasonMaxDailyMin {
		tags = append(tags, TagManyRefuels)
	}
	if s.IndFuelRatio > reasonRatioMin {
		tags = append(tags, TagFuelOver)
	}
	if s.ScoreStationConc >= reasonStationMin {
		tags = append(tags, TagStationConc)
	}
	if s.IndFuelUnderL > 0 {
		tags = append(tags, TagFuelUnder)
	}
	return strings.Join(tags, "|")
}

// classify fills tier and reason from the already-set risk score and the
// row's indicators.
func classify(s *domain.VehicleSummary) {
	s.RiskTier = TierFor(s.RiskScore)
	s.RiskReason = ReasonFor(s)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
