package domain

import "time"

// Config holds the complete Harrier configuration. It is built in main
// and passed down explicitly; no package-level configuration state exists.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// ScoringVariant selects the rule-evaluation strategy
	// - "weighted": continuous weighted sub-scores (default)
	// - "strict": binary flag variant, same indicators and classifier
	ScoringVariant ScoringVariant `json:"scoringVariant"`

	// Analytics pipeline tunables
	Pipeline PipelineConfig `json:"pipeline"`

	// Refund gate and calculator policy
	Refund RefundConfig `json:"refund"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ScoringVariant determines how indicators map to scores and tiers.
type ScoringVariant string

const (
	// VariantWeighted sums capped continuous sub-scores into a 0..100
	// risk score. Use for: ranked review queues, fraud triage.
	VariantWeighted ScoringVariant = "weighted"

	// VariantStrict assigns each triggered rule its full sub-score
	// weight. Same indicators, same tier thresholds; useful when audit
	// policy requires yes/no rule outcomes.
	VariantStrict ScoringVariant = "strict"
)

// PipelineConfig holds the indicator derivation tunables.
type PipelineConfig struct {
	// Tolerance widens the expected-fuel bounds: low = expected*(1-t),
	// high = expected*(1+t).
	Tolerance float64 `json:"tolerance"`

	// StationBaseline is the max-share level below which station
	// concentration contributes zero severity.
	StationBaseline float64 `json:"stationBaseline"`

	// StationSmoothingK dampens the concentration score for vehicles
	// with few transactions via n/(n+k).
	StationSmoothingK int `json:"stationSmoothingK"`
}

// GateMode selects the refund gate policy. Modes are mutually exclusive.
type GateMode string

const (
	// GateAbsolute passes iff actual_fuel_l <= expected_high.
	GateAbsolute GateMode = "absolute"

	// GateRatio passes iff actual/expected <= RatioThreshold. A zero
	// ratio (no expected fuel) counts as passing.
	GateRatio GateMode = "ratio"
)

// CapMode selects how the per-vehicle cap liters are determined.
type CapMode string

const (
	CapFixed        CapMode = "fixed"
	CapByTonClass   CapMode = "by_ton_class"
	CapByVehicleCol CapMode = "by_vehicle_col"
)

// RefundConfig holds the refund gate and calculator policy.
type RefundConfig struct {
	GateMode       GateMode `json:"gateMode"`
	RatioThreshold float64  `json:"ratioThreshold"`

	// UnitPrice is the reimbursement price per liter.
	UnitPrice float64 `json:"unitPrice"`

	CapMode       CapMode         `json:"capMode"`
	FixedCapL     float64         `json:"fixedCapL"`
	CapByTonClass map[int]float64 `json:"capByTonClass,omitempty"`
	CapVehicleCol string          `json:"capVehicleCol"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier:
// weighted scoring, absolute gate, fixed cap.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:           TierCommunity,
		ScoringVariant: VariantWeighted,
		Pipeline: PipelineConfig{
			Tolerance:         0.10,
			StationBaseline:   0.60,
			StationSmoothingK: 6,
		},
		Refund: RefundConfig{
			GateMode:       GateAbsolute,
			RatioThreshold: 1.10,
			UnitPrice:      500,
			CapMode:        CapFixed,
			FixedCapL:      1000,
			CapVehicleCol:  ColSubsidyCap,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
