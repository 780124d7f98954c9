package types

import (
	"bytes"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

// Account is the unit of ledger storage. Lamports hold the native balance,
// Owner names the program allowed to mutate Data, and Data carries the
// program-specific layout (token account, mint, presale config).
type Account struct {
	Lamports uint64          `json:"lamports"`
	Owner    crypto.Identity `json:"owner"`
	Data     []byte          `json:"data"`
}

// Clone returns a deep copy so callers can mutate without touching the
// cached instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = bytes.Clone(a.Data)
	return &clone
}

// IsEmpty reports whether the account carries neither balance nor data. Empty
// accounts are treated as non-existent.
func (a *Account) IsEmpty() bool {
	return a == nil || (a.Lamports == 0 && len(a.Data) == 0 && a.Owner.IsZero())
}
