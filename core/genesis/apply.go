package genesis

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/bank"
)

const markerKey = "genesis"

// ErrGenesisMismatch is returned when a data dir was seeded from a different
// genesis document.
var ErrGenesisMismatch = errors.New("genesis: data dir initialised from a different genesis")

// Apply seeds mgr from spec exactly once. It reports whether the spec was
// applied during this call.
func Apply(mgr *state.Manager, spec *Spec) (bool, error) {
	if mgr == nil {
		return false, errors.New("genesis: state manager required")
	}
	p, err := spec.plan()
	if err != nil {
		return false, err
	}
	hash, err := spec.Hash()
	if err != nil {
		return false, err
	}

	applied := false
	_, err = mgr.Update(func(tx *state.Tx) error {
		existing, ok, err := tx.GetMeta(markerKey)
		if err != nil {
			return err
		}
		if ok {
			if !bytes.Equal(existing, hash[:]) {
				return ErrGenesisMismatch
			}
			return nil
		}
		for _, a := range p.alloc {
			if err := bank.Credit(tx, a.id, a.amount); err != nil {
				return fmt.Errorf("genesis alloc %s: %w", a.id, err)
			}
		}
		for _, m := range p.mints {
			if err := bank.InitializeMint(tx, m.address, m.authority, m.decimals); err != nil {
				return fmt.Errorf("genesis mint %s: %w", m.address, err)
			}
			for _, b := range m.balances {
				ata := crypto.DeriveTokenAccount(b.id, m.address)
				if err := bank.InitializeTokenAccount(tx, ata, m.address, b.id); err != nil {
					return fmt.Errorf("genesis token account %s: %w", ata, err)
				}
				if b.amount == 0 {
					continue
				}
				if err := bank.MintTo(tx, m.address, ata, m.authority, b.amount); err != nil {
					return fmt.Errorf("genesis mint to %s: %w", ata, err)
				}
			}
		}
		applied = true
		return tx.PutMeta(markerKey, hash[:])
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
