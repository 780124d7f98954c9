package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for the presale indexer.
type Config struct {
	ListenAddress string         `yaml:"listen"`
	NodeURL       string         `yaml:"node_url"`
	Environment   string         `yaml:"environment"`
	LogLevel      string         `yaml:"log_level"`
	Database      DatabaseConfig `yaml:"database"`
	Poll          PollConfig     `yaml:"poll"`
	Redis         RedisConfig    `yaml:"redis"`
	Export        ExportConfig   `yaml:"export"`
}

// DatabaseConfig selects the gorm dialect.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// PollConfig tunes the ingestion loop.
type PollConfig struct {
	Interval   Duration `yaml:"interval"`
	BatchSize  int      `yaml:"batch_size"`
	MaxBackoff Duration `yaml:"max_backoff"`
}

// RedisConfig enables republishing purchases to a Redis stream. An empty
// address disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

// ExportConfig protects the parquet export endpoint.
type ExportConfig struct {
	JWTSecretEnv string   `yaml:"jwt_secret_env"`
	Issuer       string   `yaml:"issuer"`
	Audience     string   `yaml:"audience"`
	ClockSkew    Duration `yaml:"clock_skew"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7080"
	}
	if cfg.NodeURL == "" {
		cfg.NodeURL = "http://localhost:8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = "presale-indexer.sqlite"
	}
	if cfg.Poll.Interval.Duration == 0 {
		cfg.Poll.Interval.Duration = 2 * time.Second
	}
	if cfg.Poll.BatchSize <= 0 {
		cfg.Poll.BatchSize = 500
	}
	if cfg.Poll.MaxBackoff.Duration == 0 {
		cfg.Poll.MaxBackoff.Duration = time.Minute
	}
	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = "presale:purchases"
	}
	if cfg.Export.JWTSecretEnv == "" {
		cfg.Export.JWTSecretEnv = "PRESALE_INDEXER_JWT_SECRET"
	}
	if cfg.Export.ClockSkew.Duration == 0 {
		cfg.Export.ClockSkew.Duration = 30 * time.Second
	}
}

func validate(cfg Config) error {
	switch cfg.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return errors.New("database dsn must be configured")
	}
	if cfg.Poll.BatchSize > 1000 {
		return fmt.Errorf("poll batch_size %d exceeds the node page limit of 1000", cfg.Poll.BatchSize)
	}
	if cfg.Poll.MaxBackoff.Duration < cfg.Poll.Interval.Duration {
		return errors.New("poll max_backoff must not be shorter than interval")
	}
	if cfg.Redis.MaxLen < 0 {
		return errors.New("redis max_len must not be negative")
	}
	return nil
}

// JWTSecret resolves the export signing secret from the environment.
func (c ExportConfig) JWTSecret() []byte {
	return []byte(strings.TrimSpace(os.Getenv(c.JWTSecretEnv)))
}
