package state

import (
	"encoding/binary"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

var (
	accountPrefix    = []byte("acct/")
	logPrefix        = []byte("log/")
	logSubjectPrefix = []byte("log-subject/")
	logHeadKey       = []byte("log-head")
	requestPrefix    = []byte("req/")
	metaPrefix       = []byte("meta/")
)

func accountKey(id crypto.Identity) []byte {
	return concat(accountPrefix, id[:])
}

func logKey(seq uint64) []byte {
	return concat(logPrefix, encodeSeq(seq))
}

func logSubjectKey(subject crypto.Identity, seq uint64) []byte {
	return concat(logSubjectPrefix, subject[:], encodeSeq(seq))
}

func logSubjectScanPrefix(subject crypto.Identity) []byte {
	return concat(logSubjectPrefix, subject[:])
}

func requestKey(digest [32]byte) []byte {
	return concat(requestPrefix, digest[:])
}

func metaKey(name string) []byte {
	return concat(metaPrefix, []byte(name))
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
