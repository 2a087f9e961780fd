// Package config defines all configuration structures for the aivis service.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// Store selector values.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Generator backend selector values.
const (
	GeneratorHeuristic = "heuristic"
	GeneratorOpenAI    = "openai"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig holds PostgreSQL connection parameters.  Read only when the
// root Store selector is "postgres".
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters.  The page cache and the
// per-URL initialization lock live here; both degrade gracefully when
// Enabled is false.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
}

// KafkaConfig holds message-bus parameters for async analysis.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries int           `mapstructure:"producer_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string `mapstructure:"format"` // "json" | "console"
	Output      string `mapstructure:"output"`
	Development bool   `mapstructure:"development"`
}

// FetcherConfig holds page-fetch tunables.  The SSRF guard itself is not
// configurable; what it blocks is a security property, not an option.
type FetcherConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	UserAgent    string        `mapstructure:"user_agent"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// GeneratorConfig selects and configures the keyword/prompt generator.
// The heuristic backend needs nothing; the openai backend calls any
// OpenAI-compatible chat-completions endpoint.
type GeneratorConfig struct {
	Backend     string        `mapstructure:"backend"` // "heuristic" | "openai"
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig holds sampling and scoring parameters.
type AnalysisConfig struct {
	// TrialsPerPair is the number of simulated assistant queries per
	// prompt/keyword pair.
	TrialsPerPair int `mapstructure:"trials_per_pair"`

	// OccurrenceThreshold is the percentage cut-off under which a trial
	// hash counts as an occurrence.
	OccurrenceThreshold int `mapstructure:"occurrence_threshold"`

	// Workers bounds the sampling worker pool.
	Workers int `mapstructure:"workers"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for the service.  Every infrastructure
// component and application service reads its settings from the relevant
// sub-struct.
type Config struct {
	Store     string          `mapstructure:"store"` // "memory" | "postgres"
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.  It
// returns the first error encountered; callers treat any error as fatal and
// refuse to start.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("config: store %q is invalid; expected memory|postgres", c.Store)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rate_limit_rps must be >= 0, got %v", c.Server.RateLimitRPS)
	}

	if c.Store == StorePostgres {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required when store is postgres")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required when store is postgres")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required when store is postgres")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis is enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required when kafka is enabled")
		}
		switch c.Kafka.AutoOffsetReset {
		case "earliest", "latest":
		default:
			return fmt.Errorf("config: kafka.auto_offset_reset %q is invalid; expected earliest|latest", c.Kafka.AutoOffsetReset)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Fetcher.Timeout <= 0 {
		return fmt.Errorf("config: fetcher.timeout must be positive, got %v", c.Fetcher.Timeout)
	}
	if c.Fetcher.MaxBodyBytes < 1024 {
		return fmt.Errorf("config: fetcher.max_body_bytes must be >= 1024, got %d", c.Fetcher.MaxBodyBytes)
	}
	if c.Fetcher.MaxRedirects < 0 || c.Fetcher.MaxRedirects > 10 {
		return fmt.Errorf("config: fetcher.max_redirects %d is out of range [0, 10]", c.Fetcher.MaxRedirects)
	}

	switch c.Generator.Backend {
	case GeneratorHeuristic:
	case GeneratorOpenAI:
		if c.Generator.BaseURL == "" {
			return fmt.Errorf("config: generator.base_url is required for the openai backend")
		}
		if c.Generator.APIKey == "" {
			return fmt.Errorf("config: generator.api_key is required for the openai backend")
		}
		if c.Generator.Model == "" {
			return fmt.Errorf("config: generator.model is required for the openai backend")
		}
		if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
			return fmt.Errorf("config: generator.temperature %v is out of range [0, 2]", c.Generator.Temperature)
		}
	default:
		return fmt.Errorf("config: generator.backend %q is invalid; expected heuristic|openai", c.Generator.Backend)
	}

	if c.Analysis.TrialsPerPair < 1 || c.Analysis.TrialsPerPair > 100 {
		return fmt.Errorf("config: analysis.trials_per_pair %d is out of range [1, 100]", c.Analysis.TrialsPerPair)
	}
	if c.Analysis.OccurrenceThreshold < 1 || c.Analysis.OccurrenceThreshold > 100 {
		return fmt.Errorf("config: analysis.occurrence_threshold %d is out of range [1, 100]", c.Analysis.OccurrenceThreshold)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("config: analysis.workers must be >= 1, got %d", c.Analysis.Workers)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("config: metrics.path is required when metrics are enabled")
	}

	return nil
}
