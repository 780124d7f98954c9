package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// LogRecord is one entry of the durable append-only event log. Payload holds
// the binary encoding defined by the program that produced the record.
type LogRecord struct {
	Seq       uint64   `json:"seq"`
	Kind      string   `json:"kind"`
	Timestamp int64    `json:"timestamp"`
	RequestID [32]byte `json:"-"`
	Payload   []byte   `json:"payload"`
}
