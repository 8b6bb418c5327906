package domain

import (
	"time"
)

// Optional VehicleProfile source columns. Indicator and refund behavior
// depends on column presence, not only on per-vehicle values: a profile
// source without a tank capacity column disables over-tank detection for
// the whole batch.
const (
	ColTankCapacity = "tank_capacity_l"
	ColSubsidyCap   = "subsidy_cap_l"
)

// VehicleProfile is the static per-vehicle record. Immutable input.
type VehicleProfile struct {
	VehicleID    string  `json:"vehicle_id"`
	VehicleNo    string  `json:"vehicle_no"`
	TonClass     string  `json:"ton_class"`
	FuelType     string  `json:"fuel_type"`
	AvgEffKmPerL float64 `json:"avg_eff_km_per_l"`

	// Optional columns. Nil means the value is missing for this vehicle.
	TankCapacityL *float64 `json:"tank_capacity_l,omitempty"`
	SubsidyCapL   *float64 `json:"subsidy_cap_l,omitempty"`
}

// TelemetryRecord is one day of vehicle telemetry (the DTG feed).
// A zero Date marks an unparsable date; such rows still contribute to
// vehicle-level sums but drop out of date-keyed grouping.
type TelemetryRecord struct {
	VehicleID       string    `json:"vehicle_id"`
	Date            time.Time `json:"date"`
	TotalDistanceKm float64   `json:"total_distance_km"`
	DriveTimeHr     float64   `json:"drive_time_hr"`
	IdleTimeMin     float64   `json:"idle_time_min"`
}

// FuelTransaction is a single fuel purchase. A zero Time marks an
// unparsable timestamp; such rows are excluded from hour- and date-keyed
// indicators but still count toward fuel totals.
type FuelTransaction struct {
	TransactionID string    `json:"transaction_id"`
	VehicleID     string    `json:"vehicle_id"`
	StationID     string    `json:"station_id"`
	Time          time.Time `json:"time"`
	FuelLiter     float64   `json:"fuel_liter"`
}

// Batch is one closed set of vehicles to score. The loader hands the core
// three already-parsed tables; numeric parse failures arrive as zeros and
// timestamp parse failures as zero times.
type Batch struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenantId"`
	Profiles     []VehicleProfile  `json:"profiles"`
	Telemetry    []TelemetryRecord `json:"telemetry"`
	Transactions []FuelTransaction `json:"transactions"`

	// ProfileColumns lists the optional columns present in the profile
	// source. Core columns are always assumed present.
	ProfileColumns []string `json:"profileColumns,omitempty"`
}

// HasProfileColumn reports whether an optional profile column was present
// in the batch's profile source.
func (b *Batch) HasProfileColumn(name string) bool {
	for _, c := range b.ProfileColumns {
		if c == name {
			return true
		}
	}
	return false
}
