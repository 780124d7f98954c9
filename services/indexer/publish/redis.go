package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/config"
)

// Publisher forwards newly indexed log entries to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, entries []rpc.LogEntry) error
	Close() error
}

// Noop discards entries.
type Noop struct{}

func (Noop) Publish(context.Context, []rpc.LogEntry) error { return nil }
func (Noop) Close() error                                  { return nil }

// RedisStream appends each entry to a Redis stream with XADD.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// New returns a Redis publisher when an address is configured and a Noop
// publisher otherwise.
func New(cfg config.RedisConfig) Publisher {
	if strings.TrimSpace(cfg.Addr) == "" {
		return Noop{}
	}
	return NewRedisStream(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Stream, cfg.MaxLen)
}

// NewRedisStream wraps an existing client.
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Publish pipelines one XADD per entry.
func (r *RedisStream) Publish(ctx context.Context, entries []rpc.LogEntry) error {
	if r == nil || r.client == nil {
		return errors.New("publish: redis client not configured")
	}
	if len(entries) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, entry := range entries {
		values, err := streamValues(entry)
		if err != nil {
			return err
		}
		args := &redis.XAddArgs{Stream: r.stream, Values: values}
		if r.maxLen > 0 {
			args.MaxLen = r.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish: xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisStream) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func streamValues(entry rpc.LogEntry) (map[string]interface{}, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("publish: encode seq %d: %w", entry.Seq, err)
	}
	values := map[string]interface{}{
		"seq":        strconv.FormatUint(entry.Seq, 10),
		"kind":       entry.Kind,
		"request_id": entry.RequestID,
		"timestamp":  strconv.FormatInt(entry.Timestamp, 10),
		"entry":      string(body),
	}
	if p := entry.Purchase; p != nil {
		values["buyer"] = p.Buyer.String()
		values["currency"] = p.Currency
		values["stable_amount"] = strconv.FormatUint(p.StableAmount, 10)
		values["native_amount"] = strconv.FormatUint(p.NativeAmount, 10)
		values["allocation_amount"] = strconv.FormatUint(p.AllocationAmount, 10)
	}
	return values, nil
}
