package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/storage"
)

// MaxLogPage bounds a single log read.
const MaxLogPage = 1000

// rlp has no signed integers, so the timestamp travels as its two's
// complement bits.
type logRecordRLP struct {
	Seq       uint64
	Kind      string
	Timestamp uint64
	RequestID [32]byte
	Payload   []byte
}

func encodeLogRecord(rec types.LogRecord) ([]byte, error) {
	return rlp.EncodeToBytes(&logRecordRLP{
		Seq:       rec.Seq,
		Kind:      rec.Kind,
		Timestamp: uint64(rec.Timestamp),
		RequestID: rec.RequestID,
		Payload:   rec.Payload,
	})
}

func decodeLogRecord(raw []byte) (types.LogRecord, error) {
	var dec logRecordRLP
	if err := rlp.DecodeBytes(raw, &dec); err != nil {
		return types.LogRecord{}, fmt.Errorf("state: decode log record: %w", err)
	}
	return types.LogRecord{
		Seq:       dec.Seq,
		Kind:      dec.Kind,
		Timestamp: int64(dec.Timestamp),
		RequestID: dec.RequestID,
		Payload:   dec.Payload,
	}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxLogPage {
		return MaxLogPage
	}
	return limit
}

// ReadLog returns up to limit committed records with Seq > after in order.
func (m *Manager) ReadLog(after uint64, limit int) ([]types.LogRecord, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	out := make([]types.LogRecord, 0)
	if after == math.MaxUint64 {
		return out, nil
	}
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var decodeErr error
	err := m.db.Iterate(logPrefix, logKey(after+1), func(_, value []byte) bool {
		rec, err := decodeLogRecord(value)
		if err != nil {
			decodeErr = err
			return false
		}
		out = append(out, rec)
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}

// ReadSubjectLog returns up to limit committed records indexed under subject
// with Seq > after.
func (m *Manager) ReadSubjectLog(subject crypto.Identity, after uint64, limit int) ([]types.LogRecord, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	if after == math.MaxUint64 {
		return []types.LogRecord{}, nil
	}
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := logSubjectScanPrefix(subject)
	seqs := make([]uint64, 0)
	err := m.db.Iterate(prefix, logSubjectKey(subject, after+1), func(key, _ []byte) bool {
		seqs = append(seqs, binary.BigEndian.Uint64(key[len(prefix):]))
		return len(seqs) < limit
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.LogRecord, 0, len(seqs))
	for _, seq := range seqs {
		raw, err := m.db.Get(logKey(seq))
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("state: log index references missing record %d", seq)
		}
		if err != nil {
			return nil, err
		}
		rec, err := decodeLogRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// LogHead returns the sequence of the last committed record, 0 when the log
// is empty.
func (m *Manager) LogHead() (uint64, error) {
	if m == nil || m.db == nil {
		return 0, errNilDatabase
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, err := m.db.Get(logHeadKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: corrupt log head")
	}
	return binary.BigEndian.Uint64(raw) - 1, nil
}
