package risk

import (
	"github.com/opensource-transit/harrier/internal/domain"
)

// Full sub-score weights awarded by the strict variant when a rule's
// reason threshold is crossed.
const (
	strictOverTankWeight    = 40
	strictDailyRefuelWeight = 30
	strictFuelOverWeight    = 40
	strictFuelUnderWeight   = 10
	strictStationWeight     = 15
)

// StrictScorer is the binary flag variant: each rule either triggers at
// its reason threshold and contributes its full sub-score weight, or
// contributes nothing. It consumes the same indicator set as the
// weighted variant and classifies tier and reason through the same pure
// row classifier.
type StrictScorer struct{}

// Variant implements Scorer.
func (st *StrictScorer) Variant() domain.ScoringVariant {
	return domain.VariantStrict
}

// Score implements Scorer.
func (st *StrictScorer) Score(s *domain.VehicleSummary) {
	s.ScoreOverTank = flagScore(s.IndOverTank, strictOverTankWeight)
	s.ScoreDailyRefuel = flagScore(s.IndMaxDailyRefuel >= reasonMaxDailyMin, strictDailyRefuelWeight)
	s.ScoreFuelOver = flagScore(s.IndFuelRatio > reasonRatioMin, strictFuelOverWeight)
	s.ScoreFuelUnder = flagScore(s.IndFuelUnderL > 0, strictFuelUnderWeight)
	s.ScoreStation = flagScore(s.ScoreStationConc >= reasonStationMin, strictStationWeight)

	total := s.ScoreOverTank + s.ScoreDailyRefuel + s.ScoreFuelOver + s.ScoreFuelUnder + s.ScoreStation
	s.RiskScore = round2(clamp(total, 0, 100))

	classify(s)
}

func flagScore(triggered bool, weight float64) float64 {
	if triggered {
		return weight
	}
	return 0
}
