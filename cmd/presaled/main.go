package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/S3MTFoundationv0/s3mt.xyz/config"
	"github.com/S3MTFoundationv0/s3mt.xyz/core"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/events"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/genesis"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/observability/logging"
	telemetry "github.com/S3MTFoundationv0/s3mt.xyz/observability/otel"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
	"github.com/S3MTFoundationv0/s3mt.xyz/storage"
)

const (
	genesisPathEnv  = "PRESALE_GENESIS"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides PRESALE_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	opts := logging.Options{Level: cfg.LogLevel}
	if strings.TrimSpace(cfg.LogFile) != "" {
		opts.File = &logging.FileConfig{Path: cfg.LogFile, MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30, Compress: true}
	}
	logger := logging.SetupWithOptions("presaled", cfg.Environment, opts)

	if err := run(cfg, resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv), logger); err != nil {
		logger.Error("presaled exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.ConfigFromEnv("presaled", cfg.Environment))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	mgr := state.NewManager(db)
	if genesisPath != "" {
		spec, err := genesis.LoadSpec(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		applied, err := genesis.Apply(mgr, spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis checked", slog.String("path", genesisPath), slog.Bool("applied", applied))
	}

	programID, err := cfg.ProgramIdentity()
	if err != nil {
		return fmt.Errorf("program id: %w", err)
	}
	collector, err := cfg.FeeCollectorIdentity()
	if err != nil {
		return fmt.Errorf("fee collector: %w", err)
	}
	processor, err := core.NewProcessor(mgr, core.Options{
		ProgramID:    programID,
		FeeLamports:  cfg.FeeLamports,
		FeeCollector: collector,
		Broker:       events.NewBroker(cfg.StreamBuffer),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	server, err := rpc.NewServer(processor, rpc.ServerConfig{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		TrustProxyHeaders:  cfg.RPCTrustProxyHeaders,
		ReadTimeout:        seconds(cfg.RPCReadTimeout),
		ReadHeaderTimeout:  seconds(cfg.RPCReadHeaderTimeout),
		WriteTimeout:       seconds(cfg.RPCWriteTimeout),
		IdleTimeout:        seconds(cfg.RPCIdleTimeout),
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPCAddress, err)
	}
	logger.Info("presale node starting",
		slog.String("program_id", processor.ProgramID().String()),
		slog.String("config_address", processor.ConfigAddress().String()),
		slog.String("backend", cfg.Backend))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.Backend != config.BackendMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		return storage.NewBoltDB(cfg.StoragePath(), nil)
	case config.BackendSQLite:
		return storage.NewSQLiteDB(cfg.StoragePath())
	case config.BackendLevelDB, "":
		return storage.NewLevelDB(cfg.StoragePath())
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

// resolveGenesisPath prefers the flag, then the environment, then config.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(configValue)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
