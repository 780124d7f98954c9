package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/observability"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/publish"
)

// LogSource pages through the node's append-only presale log.
type LogSource interface {
	Log(ctx context.Context, buyer crypto.Identity, after uint64, limit int) (*rpc.LogPage, error)
}

// Store persists log entries and tracks the ingest cursor.
type Store interface {
	Cursor(ctx context.Context) (uint64, error)
	Apply(ctx context.Context, entries []rpc.LogEntry) ([]rpc.LogEntry, error)
}

// Options tunes the poll loop.
type Options struct {
	Interval   time.Duration
	BatchSize  int
	MaxBackoff time.Duration
	Publisher  publish.Publisher
	Logger     *slog.Logger
}

// Ingester mirrors the node log into the indexer store.
type Ingester struct {
	source     LogSource
	store      Store
	publisher  publish.Publisher
	interval   time.Duration
	batch      int
	maxBackoff time.Duration
	logger     *slog.Logger
	metrics    *observability.IndexerMetrics
}

// New validates dependencies and applies defaults.
func New(source LogSource, store Store, opts Options) (*Ingester, error) {
	if source == nil {
		return nil, errors.New("ingest: log source required")
	}
	if store == nil {
		return nil, errors.New("ingest: store required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.MaxBackoff < opts.Interval {
		opts.MaxBackoff = opts.Interval
	}
	if opts.Publisher == nil {
		opts.Publisher = publish.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ingester{
		source:     source,
		store:      store,
		publisher:  opts.Publisher,
		interval:   opts.Interval,
		batch:      opts.BatchSize,
		maxBackoff: opts.MaxBackoff,
		logger:     opts.Logger.With(slog.String("component", "ingester")),
		metrics:    observability.Indexer(),
	}, nil
}

// Run polls until ctx is cancelled. Full pages are followed immediately;
// failures back off exponentially up to the configured ceiling.
func (i *Ingester) Run(ctx context.Context) error {
	wait := time.Duration(0)
	failures := 0
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		n, err := i.Tick(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			wait = i.backoff(failures)
			i.metrics.RecordPollError()
			i.logger.Warn("poll failed", slog.Any("error", err), slog.Duration("retry_in", wait))
		case n >= i.batch:
			failures = 0
			wait = 0
		default:
			failures = 0
			wait = i.interval
		}
		timer.Reset(wait)
	}
}

// Tick fetches one page after the stored cursor, applies it and publishes
// the newly applied entries. It returns the page size.
func (i *Ingester) Tick(ctx context.Context) (int, error) {
	cursor, err := i.store.Cursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	page, err := i.source.Log(ctx, crypto.Identity{}, cursor, i.batch)
	if err != nil {
		return 0, fmt.Errorf("fetch log after %d: %w", cursor, err)
	}
	if page == nil || len(page.Records) == 0 {
		return 0, nil
	}
	applied, err := i.store.Apply(ctx, page.Records)
	if err != nil {
		return 0, fmt.Errorf("apply log: %w", err)
	}
	for _, entry := range applied {
		i.metrics.RecordIngest(entry.Kind, entry.Seq)
	}
	if len(applied) > 0 {
		if err := i.publisher.Publish(ctx, applied); err != nil {
			// Stored rows are not rolled back; downstream consumers may miss
			// this batch.
			i.logger.Warn("publish failed", slog.Any("error", err), slog.Int("entries", len(applied)))
		}
		i.logger.Debug("ingested",
			slog.Int("entries", len(applied)),
			slog.Uint64("cursor", applied[len(applied)-1].Seq),
			slog.Uint64("head", page.Head))
	}
	return len(page.Records), nil
}

func (i *Ingester) backoff(failures int) time.Duration {
	wait := i.interval
	for n := 1; n < failures; n++ {
		wait *= 2
		if wait >= i.maxBackoff {
			return i.maxBackoff
		}
	}
	return wait
}
