// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-transit/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProfiles upserts vehicle profiles with tenant isolation.
func (r *SQLRepository) SaveProfiles(ctx context.Context, tenantID string, profiles []domain.VehicleProfile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO vehicle_profiles (
			vehicle_id, tenant_id, vehicle_no, ton_class, fuel_type,
			avg_eff_km_per_l, tank_capacity_l, subsidy_cap_l, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vehicle_id, tenant_id) DO UPDATE SET
			vehicle_no = excluded.vehicle_no,
			ton_class = excluded.ton_class,
			fuel_type = excluded.fuel_type,
			avg_eff_km_per_l = excluded.avg_eff_km_per_l,
			tank_capacity_l = excluded.tank_capacity_l,
			subsidy_cap_l = excluded.subsidy_cap_l,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	for i := range profiles {
		p := &profiles[i]
		_, err := r.db.ExecContext(ctx, r.rebind(query),
			p.VehicleID, tenantID, p.VehicleNo, p.TonClass, p.FuelType,
			p.AvgEffKmPerL, nullFloat(p.TankCapacityL), nullFloat(p.SubsidyCapL),
			now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetProfile retrieves a vehicle profile by ID with tenant isolation.
func (r *SQLRepository) GetProfile(ctx context.Context, tenantID string, vehicleID string) (*domain.VehicleProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT vehicle_id, vehicle_no, ton_class, fuel_type,
			   avg_eff_km_per_l, tank_capacity_l, subsidy_cap_l
		FROM vehicle_profiles
		WHERE tenant_id = ? AND vehicle_id = ?
	`

	var p domain.VehicleProfile
	var tank, capL sql.NullFloat64

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, vehicleID).Scan(
		&p.VehicleID, &p.VehicleNo, &p.TonClass, &p.FuelType,
		&p.AvgEffKmPerL, &tank, &capL,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if tank.Valid {
		p.TankCapacityL = &tank.Float64
	}
	if capL.Valid {
		p.SubsidyCapL = &capL.Float64
	}
	return &p, nil
}

// ListProfiles retrieves all vehicle profiles for a tenant.
func (r *SQLRepository) ListProfiles(ctx context.Context, tenantID string) ([]domain.VehicleProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT vehicle_id, vehicle_no, ton_class, fuel_type,
			   avg_eff_km_per_l, tank_capacity_l, subsidy_cap_l
		FROM vehicle_profiles
		WHERE tenant_id = ?
		ORDER BY vehicle_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.VehicleProfile
	for rows.Next() {
		var p domain.VehicleProfile
		var tank, capL sql.NullFloat64

		if err := rows.Scan(
			&p.VehicleID, &p.VehicleNo, &p.TonClass, &p.FuelType,
			&p.AvgEffKmPerL, &tank, &capL,
		); err != nil {
			return nil, err
		}

		if tank.Valid {
			p.TankCapacityL = &tank.Float64
		}
		if capL.Valid {
			p.SubsidyCapL = &capL.Float64
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// SaveTelemetry stores raw telemetry rows keyed by batch.
func (r *SQLRepository) SaveTelemetry(ctx context.Context, tenantID string, batchID string, records []domain.TelemetryRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO telemetry (
			tenant_id, batch_id, vehicle_id, date,
			total_distance_km, drive_time_hr, idle_time_min
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i := range records {
		rec := &records[i]
		_, err := r.db.ExecContext(ctx, r.rebind(query),
			tenantID, batchID, rec.VehicleID, nullTime(rec.Date),
			rec.TotalDistanceKm, rec.DriveTimeHr, rec.IdleTimeMin,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveFuelTransactions stores raw fuel purchase rows keyed by batch.
func (r *SQLRepository) SaveFuelTransactions(ctx context.Context, tenantID string, batchID string, txs []domain.FuelTransaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO fuel_transactions (
			id, tenant_id, batch_id, vehicle_id, station_id, time, fuel_liter
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i := range txs {
		tx := &txs[i]
		_, err := r.db.ExecContext(ctx, r.rebind(query),
			tx.TransactionID, tenantID, batchID,
			tx.VehicleID, tx.StationID, nullTime(tx.Time), tx.FuelLiter,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetFuelTransactionsByVehicle retrieves fuel purchases for a vehicle with
// tenant isolation, newest first.
func (r *SQLRepository) GetFuelTransactionsByVehicle(ctx context.Context, tenantID string, vehicleID string, since time.Time) ([]domain.FuelTransaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, vehicle_id, station_id, time, fuel_liter
		FROM fuel_transactions
		WHERE tenant_id = ?
		  AND vehicle_id = ?
		  AND time >= ?
		ORDER BY time DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, vehicleID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.FuelTransaction
	for rows.Next() {
		var tx domain.FuelTransaction
		var ts sql.NullTime

		if err := rows.Scan(
			&tx.TransactionID, &tx.VehicleID, &tx.StationID, &ts, &tx.FuelLiter,
		); err != nil {
			return nil, err
		}

		if ts.Valid {
			tx.Time = ts.Time
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// SaveRun stores a scored-run snapshot with tenant isolation.
func (r *SQLRepository) SaveRun(ctx context.Context, tenantID string, run *domain.ScoredRun) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	risk, _ := json.Marshal(run.Risk)
	var refundReport []byte
	if run.Refund != nil {
		refundReport, _ = json.Marshal(run.Refund)
	}
	auditFlags, _ := json.Marshal(run.AuditFlags)
	metadata, _ := json.Marshal(run.Metadata)

	query := `
		INSERT INTO runs (
			id, tenant_id, batch_id, timestamp,
			risk_report, refund_report, audit_flags, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, tenantID, run.BatchID, run.Timestamp,
		string(risk), string(refundReport), string(auditFlags), string(metadata),
	)
	return err
}

// GetRun retrieves a scored-run snapshot by ID with tenant isolation.
func (r *SQLRepository) GetRun(ctx context.Context, tenantID string, runID string) (*domain.ScoredRun, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, batch_id, timestamp,
			   risk_report, refund_report, audit_flags, metadata
		FROM runs
		WHERE tenant_id = ? AND id = ?
	`

	var run domain.ScoredRun
	var risk, refundReport, auditFlags, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, runID).Scan(
		&run.ID, &run.TenantID, &run.BatchID, &run.Timestamp,
		&risk, &refundReport, &auditFlags, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(risk), &run.Risk); err != nil {
		return nil, fmt.Errorf("failed to parse risk report: %w", err)
	}
	if refundReport != "" {
		json.Unmarshal([]byte(refundReport), &run.Refund)
	}
	if auditFlags != "" {
		json.Unmarshal([]byte(auditFlags), &run.AuditFlags)
	}
	json.Unmarshal([]byte(metadata), &run.Metadata)

	return &run, nil
}

// SaveAuditRule stores an audit rule with tenant isolation.
func (r *SQLRepository) SaveAuditRule(ctx context.Context, tenantID string, rule *domain.AuditRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO audit_rules (
			id, tenant_id, name, description, version, expression, tag, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			tag = excluded.tag,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Tag, enabled,
		now, now,
	)
	return err
}

// GetAuditRule retrieves the latest enabled version of an audit rule.
func (r *SQLRepository) GetAuditRule(ctx context.Context, tenantID string, ruleID string) (*domain.AuditRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, tag, enabled
		FROM audit_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.AuditRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &rule.Tag, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListAuditRules retrieves all active audit rules for a tenant.
func (r *SQLRepository) ListAuditRules(ctx context.Context, tenantID string) ([]*domain.AuditRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, tag, enabled
		FROM audit_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.AuditRule
	for rows.Next() {
		var rule domain.AuditRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &rule.Tag, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		list = append(list, &rule)
	}

	return list, rows.Err()
}

// DeleteAuditRule soft-deletes an audit rule by setting enabled = 0.
func (r *SQLRepository) DeleteAuditRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE audit_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
