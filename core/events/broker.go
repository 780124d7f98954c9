package events

import (
	"context"
	"sync"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
)

const defaultSubscriberBuffer = 64

// Broker fans committed log records out to live subscribers. A subscriber that
// falls behind by more than its buffer is disconnected; it resumes by reading
// the durable log from its last seen sequence.
type Broker struct {
	mu       sync.Mutex
	subs     map[uint64]*subscription
	nextID   uint64
	buffer   int
	watchers sync.WaitGroup
}

type subscription struct {
	ch   chan types.LogRecord
	done chan struct{}
}

func (s *subscription) close() {
	close(s.ch)
	close(s.done)
}

// NewBroker creates a broker whose subscribers buffer up to buffer records.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Broker{subs: make(map[uint64]*subscription), buffer: buffer}
}

// Subscribe registers a subscriber. The returned channel is closed when
// cancel is called, when ctx is done, or when the subscriber lags.
func (b *Broker) Subscribe(ctx context.Context) (<-chan types.LogRecord, func()) {
	sub := &subscription{
		ch:   make(chan types.LogRecord, b.buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.remove(id) })
	}
	if ctx != nil && ctx.Done() != nil {
		b.watchers.Add(1)
		go func() {
			defer b.watchers.Done()
			select {
			case <-ctx.Done():
				cancel()
			case <-sub.done:
			}
		}()
	}
	return sub.ch, cancel
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		sub.close()
	}
}

// Publish delivers records to every subscriber in order.
func (b *Broker) Publish(records ...types.LogRecord) {
	if b == nil || len(records) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		for _, rec := range records {
			select {
			case sub.ch <- rec:
				continue
			default:
			}
			delete(b.subs, id)
			sub.close()
			break
		}
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
