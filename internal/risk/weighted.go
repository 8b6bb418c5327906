package risk

import (
	"github.com/opensource-transit/harrier/internal/domain"
)

// WeightedScorer is the continuous variant: five independent, internally
// capped sub-scores summed and clipped to [0,100].
type WeightedScorer struct{}

// Variant implements Scorer.
func (w *WeightedScorer) Variant() domain.ScoringVariant {
	return domain.VariantWeighted
}

// Score implements Scorer.
func (w *WeightedScorer) Score(s *domain.VehicleSummary) {
	overTank := scoreOverTank(s)
	dailyRefuel := scoreDailyRefuel(s.IndMaxDailyRefuel)
	fuelOver := scoreFuelOver(s.IndFuelRatio)
	fuelUnder := scoreFuelUnder(s)
	station := s.ScoreStationConc * 15

	total := overTank + dailyRefuel + fuelOver + fuelUnder + station

	s.ScoreOverTank = round2(overTank)
	s.ScoreDailyRefuel = round2(dailyRefuel)
	s.ScoreFuelOver = round2(fuelOver)
	s.ScoreFuelUnder = round2(fuelUnder)
	s.ScoreStation = round2(station)
	s.RiskScore = round2(clamp(total, 0, 100))

	classify(s)
}

// scoreOverTank: 25 for any over-tank transaction plus 5 per flagged
// transaction, capped at 3 (max +15).
func scoreOverTank(s *domain.VehicleSummary) float64 {
	score := 0.0
	if s.IndOverTank {
		score = 25
	}
	cnt := s.IndOverTankCnt
	if cnt > 3 {
		cnt = 3
	}
	return score + float64(cnt)*5
}

// scoreDailyRefuel: step function of the max refuels in one day.
func scoreDailyRefuel(maxDaily int) float64 {
	switch {
	case maxDaily <= 2:
		return 0
	case maxDaily == 3:
		return 10
	case maxDaily == 4:
		return 20
	default: // >= 5
		return 30
	}
}

// scoreFuelOver: 0 up to ratio 1.10, linear ramp toward 30 below 1.50,
// flat 40 at and above 1.50. The jump from just-under-30 to 40 at the
// boundary is intentional and matches the deployed thresholds.
func scoreFuelOver(ratio float64) float64 {
	switch {
	case ratio <= 1.10:
		return 0
	case ratio < 1.50:
		return (ratio - 1.10) / (1.50 - 1.10) * 30
	default:
		return 40
	}
}

// scoreFuelUnder: weak signal, scaled by the under-fuel fraction of
// expected and capped at 10. Zero when expected fuel is zero.
func scoreFuelUnder(s *domain.VehicleSummary) float64 {
	if s.ExpectedFuelL <= 0 {
		return 0
	}
	return clamp(s.IndFuelUnderL/s.ExpectedFuelL*10, 0, 10)
}
