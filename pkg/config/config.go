// Package config loads the service configuration: built-in defaults, then an
// optional YAML file, then JF_* environment variables. The result is
// validated before it is returned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Filter   FilterConfig   `yaml:"filter"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RedisConfig holds Redis connection parameters. The server must have the
// RedisBloom module loaded when the filter backend is "redis". CacheTTL
// bounds how long assembled results are cached; zero disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
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

// KafkaConfig holds Kafka broker and topic settings. Analytics publishing is
// skipped entirely when Enabled is false.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	FilterEvents string   `yaml:"filterEvents"`
}

// FilterConfig controls the membership oracle and result assembly.
type FilterConfig struct {
	Backend              string        `yaml:"backend"`
	MaxResults           int           `yaml:"maxResults"`
	FalsePositiveRate    float64       `yaml:"falsePositiveRate"`
	OracleTimeout        time.Duration `yaml:"oracleTimeout"`
	Concurrency          int           `yaml:"concurrency"`
	ProvisionConcurrency int           `yaml:"provisionConcurrency"`
	BreakerThreshold     int           `yaml:"breakerThreshold"`
	BreakerResetTimeout  time.Duration `yaml:"breakerResetTimeout"`
}

// JobsConfig selects where the job catalog is loaded from.
type JobsConfig struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	Table  string `yaml:"table"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"

	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment. Unknown YAML keys and malformed
// environment values are errors.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings and numeric bounds.
func (c *Config) Validate() error {
	switch c.Filter.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("filter.backend must be %q or %q, got %q", BackendRedis, BackendMemory, c.Filter.Backend)
	}
	switch c.Jobs.Source {
	case SourceFile, SourcePostgres:
	default:
		return fmt.Errorf("jobs.source must be %q or %q, got %q", SourceFile, SourcePostgres, c.Jobs.Source)
	}
	if c.Filter.MaxResults < 1 {
		return fmt.Errorf("filter.maxResults must be positive, got %d", c.Filter.MaxResults)
	}
	if c.Filter.FalsePositiveRate <= 0 || c.Filter.FalsePositiveRate >= 1 {
		return fmt.Errorf("filter.falsePositiveRate must be in (0, 1), got %g", c.Filter.FalsePositiveRate)
	}
	if c.Redis.CacheTTL < 0 {
		return fmt.Errorf("redis.cacheTTL must not be negative, got %s", c.Redis.CacheTTL)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "jobfilter",
			User:            "jobfilter",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			FilterEvents: "filter-events",
		},
		Filter: FilterConfig{
			Backend:              BackendRedis,
			MaxResults:           200,
			FalsePositiveRate:    0.000000001,
			OracleTimeout:        2 * time.Second,
			Concurrency:          64,
			ProvisionConcurrency: 16,
			BreakerThreshold:     20,
			BreakerResetTimeout:  10 * time.Second,
		},
		Jobs: JobsConfig{
			Source: SourceFile,
			Path:   "data-processed.json",
			Table:  "jobs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// envBinding ties one environment variable to the field it overrides.
type envBinding struct {
	name string
	set  func(cfg *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"JF_SERVER_PORT", integer(func(c *Config) *int { return &c.Server.Port })},
	{"JF_REDIS_ADDR", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"JF_REDIS_PASSWORD", str(func(c *Config) *string { return &c.Redis.Password })},
	{"JF_REDIS_CACHE_TTL", duration(func(c *Config) *time.Duration { return &c.Redis.CacheTTL })},
	{"JF_POSTGRES_HOST", str(func(c *Config) *string { return &c.Postgres.Host })},
	{"JF_POSTGRES_PORT", integer(func(c *Config) *int { return &c.Postgres.Port })},
	{"JF_POSTGRES_DATABASE", str(func(c *Config) *string { return &c.Postgres.Database })},
	{"JF_POSTGRES_USER", str(func(c *Config) *string { return &c.Postgres.User })},
	{"JF_POSTGRES_PASSWORD", str(func(c *Config) *string { return &c.Postgres.Password })},
	{"JF_KAFKA_ENABLED", boolean(func(c *Config) *bool { return &c.Kafka.Enabled })},
	{"JF_KAFKA_BROKERS", func(c *Config, v string) error {
		c.Kafka.Brokers = strings.Split(v, ",")
		return nil
	}},
	{"JF_KAFKA_FILTER_EVENTS", str(func(c *Config) *string { return &c.Kafka.FilterEvents })},
	{"JF_FILTER_BACKEND", str(func(c *Config) *string { return &c.Filter.Backend })},
	{"JF_FILTER_MAX_RESULTS", integer(func(c *Config) *int { return &c.Filter.MaxResults })},
	{"JF_FILTER_ORACLE_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Filter.OracleTimeout })},
	{"JF_FILTER_CONCURRENCY", integer(func(c *Config) *int { return &c.Filter.Concurrency })},
	{"JF_JOBS_SOURCE", str(func(c *Config) *string { return &c.Jobs.Source })},
	{"JF_JOBS_PATH", str(func(c *Config) *string { return &c.Jobs.Path })},
	{"JF_JOBS_TABLE", str(func(c *Config) *string { return &c.Jobs.Table })},
	{"JF_LOGGING_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"JF_LOGGING_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
	{"JF_METRICS_ENABLED", boolean(func(c *Config) *bool { return &c.Metrics.Enabled })},
	{"JF_METRICS_PORT", integer(func(c *Config) *int { return &c.Metrics.Port })},
}

// applyEnv overrides cfg from the variables lookup reports as set and
// non-empty. Every malformed value is reported, not just the first.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", b.name, v, err))
		}
	}
	return errors.Join(errs...)
}
