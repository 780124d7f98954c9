package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/storage"
)

var errNilDatabase = errors.New("state: database not configured")

// Manager serializes every state-changing request through a single exclusive
// lock and applies each request's writes with one storage batch, so other
// requests observe either all of a request's effects or none of them.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn against a buffered transaction. When fn returns nil the
// buffered writes are committed atomically and the log records appended by fn
// are returned; otherwise every write is discarded.
func (m *Manager) Update(fn func(*Tx) error) ([]types.LogRecord, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, fmt.Errorf("state: commit: %w", err)
	}
	return tx.appended, nil
}

// View runs fn against a read-only transaction. Concurrent views are allowed;
// they never observe a partially committed update.
func (m *Manager) View(fn func(*Tx) error) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, true))
}
