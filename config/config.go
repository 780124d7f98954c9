package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"

	// EnvEnvironment overrides Environment when set.
	EnvEnvironment = "PRESALE_ENV"
)

// Config holds the node daemon settings.
type Config struct {
	RPCAddress           string  `toml:"RPCAddress"`
	DataDir              string  `toml:"DataDir"`
	Backend              string  `toml:"Backend"`
	GenesisFile          string  `toml:"GenesisFile"`
	ProgramID            string  `toml:"ProgramID"`
	FeeLamports          uint64  `toml:"FeeLamports"`
	FeeCollector         string  `toml:"FeeCollector"`
	Environment          string  `toml:"Environment"`
	LogLevel             string  `toml:"LogLevel"`
	LogFile              string  `toml:"LogFile"`
	RateLimitPerSecond   float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst       int     `toml:"RateLimitBurst"`
	StreamBuffer         int     `toml:"StreamBuffer"`
	RPCTrustProxyHeaders bool    `toml:"RPCTrustProxyHeaders"`
	RPCReadHeaderTimeout int     `toml:"RPCReadHeaderTimeout"`
	RPCReadTimeout       int     `toml:"RPCReadTimeout"`
	RPCWriteTimeout      int     `toml:"RPCWriteTimeout"`
	RPCIdleTimeout       int     `toml:"RPCIdleTimeout"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:           ":8080",
		DataDir:              "./presale-data",
		Backend:              BackendLevelDB,
		Environment:          "dev",
		LogLevel:             "info",
		RateLimitPerSecond:   20,
		RateLimitBurst:       40,
		StreamBuffer:         256,
		RPCReadHeaderTimeout: 5,
		RPCReadTimeout:       15,
		RPCWriteTimeout:      15,
		RPCIdleTimeout:       60,
	}
}

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if env := strings.TrimSpace(os.Getenv(EnvEnvironment)); env != "" {
		c.Environment = env
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ProgramIdentity returns the configured program id, or the zero identity
// when the default should be used.
func (c *Config) ProgramIdentity() (crypto.Identity, error) {
	return optionalIdentity(c.ProgramID)
}

// FeeCollectorIdentity returns the fee collector, or the zero identity when
// fees are burned.
func (c *Config) FeeCollectorIdentity() (crypto.Identity, error) {
	return optionalIdentity(c.FeeCollector)
}

func optionalIdentity(raw string) (crypto.Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Identity{}, nil
	}
	return crypto.ParseIdentity(trimmed)
}

// StoragePath returns the database location for the configured backend.
func (c *Config) StoragePath() string {
	switch c.Backend {
	case BackendBolt:
		return filepath.Join(c.DataDir, "ledger.bolt")
	case BackendSQLite:
		return filepath.Join(c.DataDir, "ledger.sqlite")
	case BackendMemory:
		return ""
	default:
		return filepath.Join(c.DataDir, "ledger")
	}
}
