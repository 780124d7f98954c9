package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
)

type fakeSource struct {
	mu      sync.Mutex
	records []rpc.LogEntry
	fail    int
	calls   []uint64
}

func (f *fakeSource) Log(_ context.Context, _ crypto.Identity, after uint64, limit int) (*rpc.LogPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, after)
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("node unavailable")
	}
	page := &rpc.LogPage{Next: after, Head: uint64(len(f.records))}
	for _, rec := range f.records {
		if rec.Seq <= after {
			continue
		}
		if len(page.Records) == limit {
			break
		}
		page.Records = append(page.Records, rec)
		page.Next = rec.Seq
	}
	return page, nil
}

type memStore struct {
	mu      sync.Mutex
	cursor  uint64
	entries []rpc.LogEntry
}

func (m *memStore) Cursor(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, nil
}

func (m *memStore) Apply(_ context.Context, entries []rpc.LogEntry) ([]rpc.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var applied []rpc.LogEntry
	for _, e := range entries {
		if e.Seq <= m.cursor {
			continue
		}
		m.entries = append(m.entries, e)
		m.cursor = e.Seq
		applied = append(applied, e)
	}
	return applied, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type recordingPublisher struct {
	mu   sync.Mutex
	seqs []uint64
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, entries []rpc.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.seqs = append(r.seqs, e.Seq)
	}
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func records(n int) []rpc.LogEntry {
	out := make([]rpc.LogEntry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, rpc.LogEntry{Seq: uint64(i), Kind: presale.LogKindPurchase, Purchase: &rpc.PurchaseView{Currency: presale.CurrencyNative, NativeAmount: 1}})
	}
	return out
}

func TestTickAppliesAndPublishes(t *testing.T) {
	source := &fakeSource{records: records(5)}
	store := &memStore{}
	pub := &recordingPublisher{}
	ing, err := New(source, store, Options{BatchSize: 3, Publisher: pub})
	require.NoError(t, err)

	n, err := ing.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []uint64{1, 2, 3}, pub.seqs)

	n, err = ing.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, uint64(5), store.cursor)
	require.Equal(t, []uint64{0, 3}, source.calls)

	n, err = ing.Tick(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, pub.seqs, 5)
}

func TestTickKeepsCursorWhenPublishFails(t *testing.T) {
	store := &memStore{}
	ing, err := New(&fakeSource{records: records(2)}, store, Options{Publisher: &recordingPublisher{err: errors.New("redis down")}})
	require.NoError(t, err)
	_, err = ing.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), store.cursor)
}

func TestRunRecoversFromErrors(t *testing.T) {
	source := &fakeSource{records: records(7), fail: 2}
	store := &memStore{}
	ing, err := New(source, store, Options{
		Interval:   5 * time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
		BatchSize:  2,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	require.Eventually(t, func() bool { return store.count() == 7 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestBackoffCapsAtMaximum(t *testing.T) {
	ing, err := New(&fakeSource{}, &memStore{}, Options{Interval: time.Second, MaxBackoff: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, time.Second, ing.backoff(1))
	require.Equal(t, 2*time.Second, ing.backoff(2))
	require.Equal(t, 4*time.Second, ing.backoff(3))
	require.Equal(t, 5*time.Second, ing.backoff(4))
	require.Equal(t, 5*time.Second, ing.backoff(10))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, &memStore{}, Options{})
	require.Error(t, err)
	_, err = New(&fakeSource{}, nil, Options{})
	require.Error(t, err)
}
