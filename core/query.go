package core

import (
	"github.com/S3MTFoundationv0/s3mt.xyz/core/events"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
)

// Config returns the committed presale configuration.
func (p *Processor) Config() (*presale.Config, error) {
	var cfg *presale.Config
	err := p.state.View(func(tx *state.Tx) error {
		var err error
		cfg, err = presale.LoadConfig(tx, p.engine.ProgramID())
		return err
	})
	return cfg, err
}

// Account returns the committed account stored at id, nil when absent.
func (p *Processor) Account(id crypto.Identity) (*types.Account, error) {
	var acc *types.Account
	err := p.state.View(func(tx *state.Tx) error {
		var err error
		acc, err = tx.GetAccount(id)
		return err
	})
	return acc, err
}

// Log returns committed log records after the given sequence. A non-zero
// buyer restricts the result to that buyer's records.
func (p *Processor) Log(buyer crypto.Identity, after uint64, limit int) ([]types.LogRecord, error) {
	if buyer.IsZero() {
		return p.state.ReadLog(after, limit)
	}
	return p.state.ReadSubjectLog(buyer, after, limit)
}

// LogHead returns the sequence of the last committed log record.
func (p *Processor) LogHead() (uint64, error) {
	return p.state.LogHead()
}

// Broker returns the live record broker, nil when streaming is disabled.
func (p *Processor) Broker() *events.Broker { return p.broker }
