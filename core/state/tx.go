package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/storage"
)

// ErrReadOnly is returned when a write is attempted inside View.
var ErrReadOnly = errors.New("state: read-only transaction")

// Tx buffers reads and writes for a single request. Reads observe the
// request's own pending writes first.
type Tx struct {
	db       storage.Database
	readOnly bool
	writes   map[string][]byte
	deletes  map[string]struct{}
	order    []string

	nextSeq   uint64
	seqLoaded bool
	appended  []types.LogRecord
	requestID [32]byte
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{
		db:       db,
		readOnly: readOnly,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]struct{}),
	}
}

// SetRequestID tags every log record appended afterwards with the digest of
// the request being executed.
func (tx *Tx) SetRequestID(id [32]byte) { tx.requestID = id }

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if _, deleted := tx.deletes[k]; deleted {
		return nil, false, nil
	}
	if value, ok := tx.writes[k]; ok {
		return value, true, nil
	}
	value, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *Tx) put(key, value []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	k := string(key)
	if _, seen := tx.writes[k]; !seen {
		if _, deleted := tx.deletes[k]; !deleted {
			tx.order = append(tx.order, k)
		}
	}
	delete(tx.deletes, k)
	tx.writes[k] = value
	return nil
}

func (tx *Tx) del(key []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	k := string(key)
	if _, seen := tx.writes[k]; !seen {
		if _, deleted := tx.deletes[k]; !deleted {
			tx.order = append(tx.order, k)
		}
	}
	delete(tx.writes, k)
	tx.deletes[k] = struct{}{}
	return nil
}

func (tx *Tx) commit() error {
	if tx.readOnly || len(tx.order) == 0 {
		return nil
	}
	batch := tx.db.NewBatch()
	for _, k := range tx.order {
		if _, deleted := tx.deletes[k]; deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), tx.writes[k])
	}
	return batch.Write()
}

// GetAccount returns the account stored at id or nil when none exists.
func (tx *Tx) GetAccount(id crypto.Identity) (*types.Account, error) {
	raw, ok, err := tx.get(accountKey(id))
	if err != nil || !ok {
		return nil, err
	}
	acc := new(types.Account)
	if err := rlp.DecodeBytes(raw, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", id, err)
	}
	return acc, nil
}

// PutAccount stores acc at id. Empty accounts are removed.
func (tx *Tx) PutAccount(id crypto.Identity, acc *types.Account) error {
	if acc.IsEmpty() {
		return tx.del(accountKey(id))
	}
	encoded, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return fmt.Errorf("state: encode account %s: %w", id, err)
	}
	return tx.put(accountKey(id), encoded)
}

// HasRequest reports whether a request digest was already committed.
func (tx *Tx) HasRequest(digest [32]byte) (bool, error) {
	_, ok, err := tx.get(requestKey(digest))
	return ok, err
}

// MarkRequest records digest as committed at timestamp.
func (tx *Tx) MarkRequest(digest [32]byte, timestamp int64) error {
	return tx.put(requestKey(digest), encodeSeq(uint64(timestamp)))
}

// GetMeta reads an operational marker (genesis hash, schema version).
func (tx *Tx) GetMeta(name string) ([]byte, bool, error) {
	return tx.get(metaKey(name))
}

// PutMeta writes an operational marker.
func (tx *Tx) PutMeta(name string, value []byte) error {
	return tx.put(metaKey(name), value)
}

func (tx *Tx) loadSeq() error {
	if tx.seqLoaded {
		return nil
	}
	raw, ok, err := tx.get(logHeadKey)
	if err != nil {
		return err
	}
	tx.nextSeq = 1
	if ok && len(raw) == 8 {
		tx.nextSeq = binary.BigEndian.Uint64(raw)
	}
	tx.seqLoaded = true
	return nil
}

// AppendLog appends a record to the durable event log and indexes it under
// each subject. The record becomes visible only when the surrounding update
// commits.
func (tx *Tx) AppendLog(kind string, timestamp int64, payload []byte, subjects ...crypto.Identity) (uint64, error) {
	if tx.readOnly {
		return 0, ErrReadOnly
	}
	if err := tx.loadSeq(); err != nil {
		return 0, err
	}
	rec := types.LogRecord{
		Seq:       tx.nextSeq,
		Kind:      kind,
		Timestamp: timestamp,
		RequestID: tx.requestID,
		Payload:   payload,
	}
	encoded, err := encodeLogRecord(rec)
	if err != nil {
		return 0, err
	}
	if err := tx.put(logKey(rec.Seq), encoded); err != nil {
		return 0, err
	}
	for _, subject := range subjects {
		if err := tx.put(logSubjectKey(subject, rec.Seq), []byte{}); err != nil {
			return 0, err
		}
	}
	tx.nextSeq++
	if err := tx.put(logHeadKey, encodeSeq(tx.nextSeq)); err != nil {
		return 0, err
	}
	tx.appended = append(tx.appended, rec)
	return rec.Seq, nil
}
