// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Postgres, Redis, Kafka, Ingest, per-source tuning, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Sources  []SourceConfig `yaml:"sources"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds the optional seen-key cache connection parameters.
// When Enabled is false the idempotency guard goes straight to Postgres.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	KeyTTL   time.Duration `yaml:"keyTTL"`
}

// KafkaConfig holds the optional outcome-event publication settings.
type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	OutcomesTopic string        `yaml:"outcomesTopic"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// IngestConfig holds run-wide pipeline tuning.
type IngestConfig struct {
	Lookback        int  `yaml:"lookback"`
	MaxBatchSize    int  `yaml:"maxBatchSize"`
	PersistOutcomes bool `yaml:"persistOutcomes"`
}

// SourceConfig describes one imaging source (rover) endpoint and its tuning.
// Latency profiles differ wildly between sources, so the fetch timeout is
// configured here rather than globally.
type SourceConfig struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Schema          string        `yaml:"schema"`
	BaseURL         string        `yaml:"baseUrl"`
	FrontierURL     string        `yaml:"frontierUrl"`
	FetchTimeout    time.Duration `yaml:"fetchTimeout"`
	RequestsPerSec  float64       `yaml:"requestsPerSec"`
	RetryAttempts   int           `yaml:"retryAttempts"`
	RetryBaseDelay  time.Duration `yaml:"retryBaseDelay"`
	BreakerFailures int           `yaml:"breakerFailures"`
	BreakerCooldown time.Duration `yaml:"breakerCooldown"`
	MinQuality      string        `yaml:"minQuality"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics registry. The ingest process
// is cron-invoked, so no scrape server is started unless Enabled is set.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	applySourceDefaults(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "marsphotos",
			User:            "marsphotos",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			KeyTTL:   24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			OutcomesTopic: "ingest-outcomes",
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
		},
		Ingest: IngestConfig{
			Lookback:        7,
			MaxBatchSize:    1000,
			PersistOutcomes: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applySourceDefaults fills per-source zero values with safe defaults.
// Retry and breaker tuning is per source because each source owns an
// independent breaker instance.
func applySourceDefaults(cfg *Config) {
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.FetchTimeout <= 0 {
			src.FetchTimeout = 30 * time.Second
		}
		if src.RequestsPerSec <= 0 {
			src.RequestsPerSec = 2
		}
		if src.RetryAttempts <= 0 {
			src.RetryAttempts = 3
		}
		if src.RetryBaseDelay <= 0 {
			src.RetryBaseDelay = 2 * time.Second
		}
		if src.BreakerFailures <= 0 {
			src.BreakerFailures = 5
		}
		if src.BreakerCooldown <= 0 {
			src.BreakerCooldown = 60 * time.Second
		}
	}
}

// applyEnvOverrides reads MP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("MP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MP_INGEST_LOOKBACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.Lookback = n
		}
	}
	if v := os.Getenv("MP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
