// Package indicator derives the shared anomaly indicator set from the
// base summary, raw fuel transactions, and vehicle profiles. Both scoring
// variants consume the same indicators; nothing here is computed twice.
package indicator

import (
	"time"

	"github.com/opensource-transit/harrier/internal/domain"
)

// Engine computes expected-fuel bounds and anomaly indicators in place
// on a batch of vehicle summaries.
type Engine struct {
	tolerance       float64
	stationBaseline float64
	stationK        float64
}

// New creates an indicator engine from pipeline configuration.
// Zero values fall back to the documented defaults.
func New(cfg domain.PipelineConfig) *Engine {
	e := &Engine{
		tolerance:       cfg.Tolerance,
		stationBaseline: cfg.StationBaseline,
		stationK:        float64(cfg.StationSmoothingK),
	}
	if e.tolerance <= 0 {
		e.tolerance = 0.10
	}
	if e.stationBaseline <= 0 || e.stationBaseline >= 1 {
		e.stationBaseline = 0.60
	}
	if e.stationK <= 0 {
		e.stationK = 6
	}
	return e
}

// Enrich fills the expected-fuel bounds and all indicator fields on each
// summary row. Every derived field is a total function of the row plus
// the vehicle's own transactions; rows never influence each other.
func (e *Engine) Enrich(batch *domain.Batch, summaries []domain.VehicleSummary) []domain.VehicleSummary {
	hasCapacityColumn := batch.HasProfileColumn(domain.ColTankCapacity)

	capacity := make(map[string]*float64, len(batch.Profiles))
	for _, p := range batch.Profiles {
		capacity[p.VehicleID] = p.TankCapacityL
	}

	overTankCnt := make(map[string]int)
	dailyCnt := make(map[string]map[string]int)   // vehicle -> date -> count
	stationCnt := make(map[string]map[string]int) // vehicle -> station -> count

	for _, tx := range batch.Transactions {
		if hasCapacityColumn {
			if tank := capacity[tx.VehicleID]; tank != nil && tx.FuelLiter > *tank {
				overTankCnt[tx.VehicleID]++
			}
		}

		// Unparsable timestamps drop out of date-keyed grouping.
		if !tx.Time.IsZero() {
			day := tx.Time.Format(time.DateOnly)
			if dailyCnt[tx.VehicleID] == nil {
				dailyCnt[tx.VehicleID] = make(map[string]int)
			}
			dailyCnt[tx.VehicleID][day]++
		}

		if stationCnt[tx.VehicleID] == nil {
			stationCnt[tx.VehicleID] = make(map[string]int)
		}
		stationCnt[tx.VehicleID][tx.StationID]++
	}

	for i := range summaries {
		s := &summaries[i]

		e.expectedBounds(s)

		cnt := overTankCnt[s.VehicleID]
		s.IndOverTank = cnt > 0
		s.IndOverTankCnt = cnt

		s.IndMaxDailyRefuel = maxCount(dailyCnt[s.VehicleID])

		e.fuelDeviation(s)
		e.stationConcentration(s, stationCnt[s.VehicleID])
	}

	return summaries
}

// expectedBounds computes expected_fuel_l and its tolerance band.
// Expected fuel is 0, not an error, when efficiency is missing or zero.
func (e *Engine) expectedBounds(s *domain.VehicleSummary) {
	if s.AvgEffKmPerL > 0 {
		s.ExpectedFuelL = s.TotalDistanceKm / s.AvgEffKmPerL
	} else {
		s.ExpectedFuelL = 0
	}
	s.ExpectedLow = s.ExpectedFuelL * (1 - e.tolerance)
	s.ExpectedHigh = s.ExpectedFuelL * (1 + e.tolerance)
}

// fuelDeviation computes the ratio and over/under liter deviations.
func (e *Engine) fuelDeviation(s *domain.VehicleSummary) {
	if s.ExpectedFuelL > 0 {
		s.IndFuelRatio = s.ActualFuelL / s.ExpectedFuelL
	} else {
		s.IndFuelRatio = 0
	}

	s.IndFuelOverL = max(0, s.ActualFuelL-s.ExpectedHigh)

	// A vehicle with no recorded fuel signals missing data, not
	// under-fueling.
	if s.ActualFuelL <= 0 {
		s.IndFuelUnderL = 0
	} else {
		s.IndFuelUnderL = max(0, s.ExpectedLow-s.ActualFuelL)
	}
}

// stationConcentration computes the max station share and the
// sample-size-corrected concentration score in [0,1).
func (e *Engine) stationConcentration(s *domain.VehicleSummary, stations map[string]int) {
	total := 0
	maxAtOne := 0
	for _, c := range stations {
		total += c
		if c > maxAtOne {
			maxAtOne = c
		}
	}

	if total == 0 {
		s.IndStationMaxShare = 0
		s.ScoreStationConc = 0
		return
	}

	s.IndStationMaxShare = float64(maxAtOne) / float64(total)

	raw := (s.IndStationMaxShare - e.stationBaseline) / (1 - e.stationBaseline)
	raw = clamp(raw, 0, 1)

	n := float64(s.RefuelCnt)
	nWeight := n / (n + e.stationK)

	s.ScoreStationConc = raw * nWeight
}

func maxCount(byKey map[string]int) int {
	m := 0
	for _, c := range byKey {
		if c > m {
			m = c
		}
	}
	return m
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
