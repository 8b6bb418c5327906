package aggregate

import (
	"testing"
	"time"

	"github.com/opensource-transit/harrier/internal/domain"
)

func tx(id, vehicleID, stationID string, t time.Time, liters float64) domain.FuelTransaction {
	return domain.FuelTransaction{
		TransactionID: id,
		VehicleID:     vehicleID,
		StationID:     stationID,
		Time:          t,
		FuelLiter:     liters,
	}
}

func TestSummarizeLeftJoin(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	batch := &domain.Batch{
		Profiles: []domain.VehicleProfile{
			{VehicleID: "V1", VehicleNo: "12가3456", AvgEffKmPerL: 10},
			{VehicleID: "V2", AvgEffKmPerL: 8},
			{VehicleID: "V3", AvgEffKmPerL: 6},
		},
		Telemetry: []domain.TelemetryRecord{
			{VehicleID: "V1", Date: day, TotalDistanceKm: 120, DriveTimeHr: 4, IdleTimeMin: 30},
			{VehicleID: "V1", Date: day.AddDate(0, 0, 1), TotalDistanceKm: 80, DriveTimeHr: 2.5, IdleTimeMin: 12},
			{VehicleID: "V2", Date: day, TotalDistanceKm: 50, DriveTimeHr: 1, IdleTimeMin: 5},
		},
		Transactions: []domain.FuelTransaction{
			tx("T1", "V1", "S1", day.Add(9*time.Hour), 40),
			tx("T2", "V1", "S2", day.Add(14*time.Hour), 35),
			tx("T3", "V2", "S1", day.Add(11*time.Hour), 20),
		},
	}

	summaries := Summarize(batch)

	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}

	v1 := summaries[0]
	if v1.VehicleID != "V1" {
		t.Fatalf("expected profile order preserved, got %s first", v1.VehicleID)
	}
	if v1.TotalDistanceKm != 200 {
		t.Errorf("V1 distance: expected 200, got %.1f", v1.TotalDistanceKm)
	}
	if v1.TotalDriveTimeHr != 6.5 {
		t.Errorf("V1 drive time: expected 6.5, got %.1f", v1.TotalDriveTimeHr)
	}
	if v1.TotalIdleTimeMin != 42 {
		t.Errorf("V1 idle time: expected 42, got %.1f", v1.TotalIdleTimeMin)
	}
	if v1.ActualFuelL != 75 {
		t.Errorf("V1 fuel: expected 75, got %.1f", v1.ActualFuelL)
	}
	if v1.RefuelCnt != 2 {
		t.Errorf("V1 refuel count: expected 2, got %d", v1.RefuelCnt)
	}

	// V3 has no telemetry and no transactions but must still appear.
	v3 := summaries[2]
	if v3.VehicleID != "V3" {
		t.Fatalf("expected V3 last, got %s", v3.VehicleID)
	}
	if v3.TotalDistanceKm != 0 || v3.ActualFuelL != 0 || v3.RefuelCnt != 0 || v3.NightRefuelCnt != 0 {
		t.Errorf("V3 aggregates should all be zero: %+v", v3)
	}
}

func TestNightRefuelWindow(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		at    time.Time
		night bool
	}{
		{"23:00 is night", day.Add(23 * time.Hour), true},
		{"22:59 is not night", day.Add(22*time.Hour + 59*time.Minute), false},
		{"05:59 is night", day.Add(5*time.Hour + 59*time.Minute), true},
		{"06:00 is not night", day.Add(6 * time.Hour), false},
		{"midnight is night", day, true},
		{"unparsable time is not night", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := &domain.Batch{
				Profiles:     []domain.VehicleProfile{{VehicleID: "V1"}},
				Transactions: []domain.FuelTransaction{tx("T1", "V1", "S1", tt.at, 10)},
			}

			s := Summarize(batch)[0]

			want := 0
			if tt.night {
				want = 1
			}
			if s.NightRefuelCnt != want {
				t.Errorf("night count: expected %d, got %d", want, s.NightRefuelCnt)
			}
			// Unparsable timestamps still count toward totals.
			if s.RefuelCnt != 1 || s.ActualFuelL != 10 {
				t.Errorf("transaction should count toward totals: %+v", s)
			}
		})
	}
}

func TestSummarizeNoDuplicateMerge(t *testing.T) {
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	batch := &domain.Batch{
		Profiles: []domain.VehicleProfile{{VehicleID: "V1"}},
		Telemetry: []domain.TelemetryRecord{
			{VehicleID: "V1", Date: day, TotalDistanceKm: 100},
			{VehicleID: "V1", Date: day, TotalDistanceKm: 100},
		},
		Transactions: []domain.FuelTransaction{
			tx("T1", "V1", "S1", day, 30),
			tx("T2", "V1", "S1", day, 30),
		},
	}

	summaries := Summarize(batch)

	if len(summaries) != 1 {
		t.Fatalf("expected exactly one row per vehicle, got %d", len(summaries))
	}
	if summaries[0].TotalDistanceKm != 200 {
		t.Errorf("expected summed distance 200, got %.1f", summaries[0].TotalDistanceKm)
	}
	if summaries[0].ActualFuelL != 60 {
		t.Errorf("expected summed fuel 60, got %.1f", summaries[0].ActualFuelL)
	}
}
