// Package aggregate reduces the raw telemetry and fuel transaction tables
// to one base summary row per vehicle.
package aggregate

import (
	"github.com/opensource-transit/harrier/internal/domain"
)

// Night window: transactions at or after 23:00 or before 06:00 local time.
const (
	nightHourStart = 23
	nightHourEnd   = 6
)

type telemetryTotals struct {
	distanceKm  float64
	driveTimeHr float64
	idleTimeMin float64
}

type fuelTotals struct {
	fuelLiter      float64
	refuelCnt      int
	nightRefuelCnt int
}

// Summarize left-joins the vehicle profile table with per-vehicle
// telemetry and transaction aggregates. Every vehicle in the profile
// table appears exactly once in the output, in profile order; vehicles
// with no matching telemetry or transactions keep zero aggregates.
func Summarize(batch *domain.Batch) []domain.VehicleSummary {
	telemetry := make(map[string]*telemetryTotals, len(batch.Profiles))
	for _, rec := range batch.Telemetry {
		t := telemetry[rec.VehicleID]
		if t == nil {
			t = &telemetryTotals{}
			telemetry[rec.VehicleID] = t
		}
		t.distanceKm += rec.TotalDistanceKm
		t.driveTimeHr += rec.DriveTimeHr
		t.idleTimeMin += rec.IdleTimeMin
	}

	fuel := make(map[string]*fuelTotals, len(batch.Profiles))
	for _, tx := range batch.Transactions {
		f := fuel[tx.VehicleID]
		if f == nil {
			f = &fuelTotals{}
			fuel[tx.VehicleID] = f
		}
		f.fuelLiter += tx.FuelLiter
		f.refuelCnt++
		if isNight(tx) {
			f.nightRefuelCnt++
		}
	}

	summaries := make([]domain.VehicleSummary, 0, len(batch.Profiles))
	for _, p := range batch.Profiles {
		s := domain.VehicleSummary{
			VehicleID:     p.VehicleID,
			VehicleNo:     p.VehicleNo,
			TonClass:      p.TonClass,
			FuelType:      p.FuelType,
			AvgEffKmPerL:  p.AvgEffKmPerL,
			TankCapacityL: p.TankCapacityL,
		}
		if t, ok := telemetry[p.VehicleID]; ok {
			s.TotalDistanceKm = t.distanceKm
			s.TotalDriveTimeHr = t.driveTimeHr
			s.TotalIdleTimeMin = t.idleTimeMin
		}
		if f, ok := fuel[p.VehicleID]; ok {
			s.ActualFuelL = f.fuelLiter
			s.RefuelCnt = f.refuelCnt
			s.NightRefuelCnt = f.nightRefuelCnt
		}
		summaries = append(summaries, s)
	}

	return summaries
}

// isNight reports whether a transaction falls in the night refuel window.
// Transactions with an unparsable timestamp are never night.
func isNight(tx domain.FuelTransaction) bool {
	if tx.Time.IsZero() {
		return false
	}
	h := tx.Time.Hour()
	return h >= nightHourStart || h < nightHourEnd
}
