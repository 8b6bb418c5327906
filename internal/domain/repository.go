// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Vehicle profile operations
	SaveProfiles(ctx context.Context, tenantID string, profiles []VehicleProfile) error
	GetProfile(ctx context.Context, tenantID string, vehicleID string) (*VehicleProfile, error)
	ListProfiles(ctx context.Context, tenantID string) ([]VehicleProfile, error)

	// Raw input tables, keyed by batch
	SaveTelemetry(ctx context.Context, tenantID string, batchID string, records []TelemetryRecord) error
	SaveFuelTransactions(ctx context.Context, tenantID string, batchID string, txs []FuelTransaction) error
	GetFuelTransactionsByVehicle(ctx context.Context, tenantID string, vehicleID string, since time.Time) ([]FuelTransaction, error)

	// Scored run snapshots
	SaveRun(ctx context.Context, tenantID string, run *ScoredRun) error
	GetRun(ctx context.Context, tenantID string, runID string) (*ScoredRun, error)

	// Audit rule operations
	SaveAuditRule(ctx context.Context, tenantID string, rule *AuditRule) error
	GetAuditRule(ctx context.Context, tenantID string, ruleID string) (*AuditRule, error)
	ListAuditRules(ctx context.Context, tenantID string) ([]*AuditRule, error)
	DeleteAuditRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
