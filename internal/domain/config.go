package domain

import "time"

// Config holds the complete Shikra configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Scoring configuration
	Detection DetectionConfig `json:"detection"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// DetectionConfig tunes the score aggregator.
// Weights map a detection method to its share of the weighted average;
// results with an unrecognized method fall into DefaultWeight.
type DetectionConfig struct {
	Weights       map[DetectionMethod]float64 `json:"weights"`
	DefaultWeight float64                     `json:"defaultWeight"`

	// FraudThreshold is the exclusive bound above which a transaction
	// is flagged. A score of exactly FraudThreshold is not fraudulent.
	FraudThreshold float64 `json:"fraudThreshold"`

	// DetectorTimeout bounds each detector; a timeout counts as that
	// detector failing closed.
	DetectorTimeout time.Duration `json:"detectorTimeout"`

	// HistoryLimit caps how many recent transactions detectors read.
	HistoryLimit int `json:"historyLimit"`
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

// DefaultConfig returns the embedded single-node configuration:
// SQLite, in-process LRU cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./shikra.db",
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
		Detection: DefaultDetectionConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "shikra",
		},
	}
}

// DefaultDetectionConfig returns the standard weight table.
// The blacklist checker reports under pattern_matching and therefore
// shares its bucket.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Weights: map[DetectionMethod]float64{
			MethodBehavioral:      0.30,
			MethodPatternMatching: 0.35,
			MethodAnomaly:         0.15,
		},
		DefaultWeight:   0.10,
		FraudThreshold:  60,
		DetectorTimeout: 2 * time.Second,
		HistoryLimit:    100,
	}
}

// ClusterConfig returns a configuration for distributed deployments:
// PostgreSQL, two-phase Redis cache, NATS event bus.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "shikra",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
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
