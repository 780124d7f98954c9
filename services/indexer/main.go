package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/S3MTFoundationv0/s3mt.xyz/observability/logging"
	telemetry "github.com/S3MTFoundationv0/s3mt.xyz/observability/otel"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc/client"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/config"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/ingest"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/publish"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/server"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/indexer/config.yaml", "path to indexer configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("indexer: load config: %v", err)
	}
	logger := logging.SetupWithOptions("presale-indexer", cfg.Environment, logging.Options{Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.ConfigFromEnv("presale-indexer", cfg.Environment))
	if err != nil {
		log.Fatalf("indexer: init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	svc, err := newService(cfg, logger)
	if err != nil {
		log.Fatalf("indexer: %v", err)
	}
	defer svc.Close()

	go func() {
		if err := svc.ingester.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ingester stopped", slog.Any("error", err))
		}
	}()
	go func() {
		logger.Info("indexer listening", slog.String("addr", cfg.ListenAddress), slog.String("node", cfg.NodeURL))
		if err := svc.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.http.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}

type service struct {
	store     *storage.Store
	publisher publish.Publisher
	ingester  *ingest.Ingester
	http      *http.Server
}

func newService(cfg config.Config, logger *slog.Logger) (*service, error) {
	store, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	node, err := client.New(client.Config{BaseURL: cfg.NodeURL, Timeout: 30 * time.Second})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("node client: %w", err)
	}
	publisher := publish.New(cfg.Redis)
	ingester, err := ingest.New(node, store, ingest.Options{
		Interval:   cfg.Poll.Interval.Duration,
		BatchSize:  cfg.Poll.BatchSize,
		MaxBackoff: cfg.Poll.MaxBackoff.Duration,
		Publisher:  publisher,
		Logger:     logger,
	})
	if err != nil {
		publisher.Close()
		store.Close()
		return nil, fmt.Errorf("ingester: %w", err)
	}
	handler, err := server.New(store, server.AuthConfig{
		Secret:    cfg.Export.JWTSecret(),
		Issuer:    cfg.Export.Issuer,
		Audience:  cfg.Export.Audience,
		ClockSkew: cfg.Export.ClockSkew.Duration,
	}, logger)
	if err != nil {
		publisher.Close()
		store.Close()
		return nil, fmt.Errorf("server: %w", err)
	}
	return &service{
		store:     store,
		publisher: publisher,
		ingester:  ingester,
		http: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *service) Close() {
	_ = s.publisher.Close()
	_ = s.store.Close()
}
