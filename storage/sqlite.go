package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
    k BLOB PRIMARY KEY,
    v BLOB NOT NULL
) WITHOUT ROWID;
`

// SQLiteDB keeps the ledger in a single sqlite table. It exists for
// operators who prefer a file they can inspect with standard tooling.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the sqlite database identified by dsn.
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("storage: sqlite dsn required")
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps in-memory DSNs coherent and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *SQLiteDB) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteDB) Put(key, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO kv(k, v) VALUES(?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, nonNil(value))
	return err
}

func (s *SQLiteDB) Delete(key []byte) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE k = ?`, key)
	return err
}

func (s *SQLiteDB) NewBatch() Batch {
	return &opBatch{commit: func(ops []batchOp) error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, op := range ops {
			if op.delete {
				_, err = tx.Exec(`DELETE FROM kv WHERE k = ?`, op.key)
			} else {
				_, err = tx.Exec(`INSERT INTO kv(k, v) VALUES(?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, op.key, nonNil(op.value))
			}
			if err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	}}
}

func (s *SQLiteDB) Iterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	lower := prefix
	if start != nil && string(start) > string(prefix) {
		lower = start
	}
	query := `SELECT k, v FROM kv WHERE k >= ? ORDER BY k`
	args := []any{nonNil(lower)}
	if upper := prefixEnd(prefix); upper != nil {
		query = `SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`
		args = append(args, upper)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return err
	}
	type pair struct{ k, v []byte }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.k, &p.v); err != nil {
			rows.Close()
			return err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range pairs {
		if !fn(p.k, p.v) {
			break
		}
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// prefixEnd returns the smallest key greater than every key with the prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
