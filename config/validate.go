package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values the node cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLevelDB, BackendBolt, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: unsupported Backend %q", c.Backend)
	}
	if c.Backend != BackendMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required for %s backend", c.Backend)
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if _, err := c.ProgramIdentity(); err != nil {
		return fmt.Errorf("config: ProgramID: %w", err)
	}
	if _, err := c.FeeCollectorIdentity(); err != nil {
		return fmt.Errorf("config: FeeCollector: %w", err)
	}
	if c.RateLimitPerSecond < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("config: rate limits must not be negative")
	}
	if c.RateLimitPerSecond > 0 && c.RateLimitBurst == 0 {
		return fmt.Errorf("config: RateLimitBurst required when RateLimitPerSecond is set")
	}
	if c.StreamBuffer < 0 {
		return fmt.Errorf("config: StreamBuffer must not be negative")
	}
	for name, v := range map[string]int{
		"RPCReadHeaderTimeout": c.RPCReadHeaderTimeout,
		"RPCReadTimeout":       c.RPCReadTimeout,
		"RPCWriteTimeout":      c.RPCWriteTimeout,
		"RPCIdleTimeout":       c.RPCIdleTimeout,
	} {
		if v < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	return nil
}
