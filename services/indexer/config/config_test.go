package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "node_url: http://node:8080\n"))
	require.NoError(t, err)
	require.Equal(t, ":7080", cfg.ListenAddress)
	require.Equal(t, "http://node:8080", cfg.NodeURL)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "presale-indexer.sqlite", cfg.Database.DSN)
	require.Equal(t, 2*time.Second, cfg.Poll.Interval.Duration)
	require.Equal(t, 500, cfg.Poll.BatchSize)
	require.Equal(t, "presale:purchases", cfg.Redis.Stream)
	require.Equal(t, "PRESALE_INDEXER_JWT_SECRET", cfg.Export.JWTSecretEnv)
}

func TestLoadParsesDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://indexer@db/presale
poll:
  interval: 500ms
  max_backoff: 30s
  batch_size: 250
redis:
  addr: localhost:6379
  max_len: 1000
`))
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Equal(t, 500*time.Millisecond, cfg.Poll.Interval.Duration)
	require.Equal(t, 30*time.Second, cfg.Poll.MaxBackoff.Duration)
	require.Equal(t, 250, cfg.Poll.BatchSize)
	require.Equal(t, int64(1000), cfg.Redis.MaxLen)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad duration":   "poll:\n  interval: soon\n",
		"unknown driver": "database:\n  driver: mysql\n  dsn: x\n",
		"postgres dsn":   "database:\n  driver: postgres\n",
		"batch too big":  "poll:\n  batch_size: 5000\n",
		"unknown key":    "listen: :1\nbogus: true\n",
		"backoff":        "poll:\n  interval: 10s\n  max_backoff: 1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestJWTSecretFromEnv(t *testing.T) {
	t.Setenv("INDEXER_TEST_SECRET", "  s3cret ")
	cfg := ExportConfig{JWTSecretEnv: "INDEXER_TEST_SECRET"}
	require.Equal(t, []byte("s3cret"), cfg.JWTSecret())
}
