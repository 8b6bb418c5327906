package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaVehicleProfiles = `
CREATE TABLE IF NOT EXISTS vehicle_profiles (
    vehicle_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    vehicle_no TEXT NOT NULL,
    ton_class TEXT NOT NULL,
    fuel_type TEXT NOT NULL,
    avg_eff_km_per_l REAL NOT NULL,
    tank_capacity_l REAL,
    subsidy_cap_l REAL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (vehicle_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_vehicle_profiles_tenant ON vehicle_profiles(tenant_id);
`

const schemaTelemetry = `
CREATE TABLE IF NOT EXISTS telemetry (
    tenant_id TEXT NOT NULL,
    batch_id TEXT NOT NULL,
    vehicle_id TEXT NOT NULL,
    date TIMESTAMP,
    total_distance_km REAL NOT NULL,
    drive_time_hr REAL NOT NULL,
    idle_time_min REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_telemetry_batch ON telemetry(tenant_id, batch_id);
CREATE INDEX IF NOT EXISTS idx_telemetry_vehicle ON telemetry(tenant_id, vehicle_id);
`

const schemaFuelTransactions = `
CREATE TABLE IF NOT EXISTS fuel_transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    batch_id TEXT NOT NULL,
    vehicle_id TEXT NOT NULL,
    station_id TEXT NOT NULL,
    time TIMESTAMP,
    fuel_liter REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fuel_transactions_batch ON fuel_transactions(tenant_id, batch_id);
CREATE INDEX IF NOT EXISTS idx_fuel_transactions_vehicle ON fuel_transactions(tenant_id, vehicle_id);
CREATE INDEX IF NOT EXISTS idx_fuel_transactions_time ON fuel_transactions(tenant_id, time);
`

// schemaRuns stores immutable scored-run snapshots. The risk and refund
// report tables serialize as JSON; rows are never updated after insert.
const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    batch_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    risk_report TEXT NOT NULL,
    refund_report TEXT,
    audit_flags TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_tenant ON runs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(tenant_id, batch_id);
CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(tenant_id, timestamp);
`

const schemaAuditRules = `
CREATE TABLE IF NOT EXISTS audit_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    tag TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_audit_rules_tenant ON audit_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audit_rules_enabled ON audit_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaVehicleProfiles,
		schemaTelemetry,
		schemaFuelTransactions,
		schemaRuns,
		schemaAuditRules,
	}
}
