package bank

import (
	"fmt"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

const (
	accountStorageOverhead = 128
	lamportsPerByte        = 6960
)

// Store is the account view the ledger primitives operate on. *state.Tx
// satisfies it.
type Store interface {
	GetAccount(id crypto.Identity) (*types.Account, error)
	PutAccount(id crypto.Identity, acc *types.Account) error
}

// RentExemptMinimum returns the deposit required to keep an account with size
// bytes of data alive.
func RentExemptMinimum(size int) uint64 {
	if size < 0 {
		size = 0
	}
	return uint64(accountStorageOverhead+size) * lamportsPerByte
}

func addUint64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

func loadSystemAccount(store Store, id crypto.Identity) (*types.Account, error) {
	acc, err := store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if acc.Owner != crypto.SystemProgramID {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrInvalidAccountOwner, id, acc.Owner)
	}
	return acc, nil
}

// CreateAccount allocates a zeroed account of space bytes owned by owner. The
// rent-exempt deposit is moved from payer, which must be system owned.
func CreateAccount(store Store, payer, id crypto.Identity, space int, owner crypto.Identity) (*types.Account, error) {
	existing, err := store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	from, err := loadSystemAccount(store, payer)
	if err != nil {
		return nil, err
	}
	rent := RentExemptMinimum(space)
	if from.Lamports < rent {
		return nil, fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, rent, from.Lamports)
	}
	from = from.Clone()
	from.Lamports -= rent
	created := &types.Account{Lamports: rent, Owner: owner, Data: make([]byte, space)}
	if err := store.PutAccount(payer, from); err != nil {
		return nil, err
	}
	if err := store.PutAccount(id, created); err != nil {
		return nil, err
	}
	return created, nil
}

// TransferNative moves lamports between accounts. The source must be system
// owned; a missing destination is created as a system account.
func TransferNative(store Store, from, to crypto.Identity, amount uint64) error {
	src, err := loadSystemAccount(store, from)
	if err != nil {
		return err
	}
	if src.Lamports < amount {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, amount, src.Lamports)
	}
	if from == to {
		return nil
	}
	dst, err := store.GetAccount(to)
	if err != nil {
		return err
	}
	if dst == nil {
		dst = &types.Account{Owner: crypto.SystemProgramID}
	} else {
		dst = dst.Clone()
	}
	total, err := addUint64(dst.Lamports, amount)
	if err != nil {
		return err
	}
	src = src.Clone()
	src.Lamports -= amount
	dst.Lamports = total
	if err := store.PutAccount(from, src); err != nil {
		return err
	}
	return store.PutAccount(to, dst)
}

// Credit adds lamports to an account, creating a system account when id is
// unknown. Used by genesis and fee collection.
func Credit(store Store, id crypto.Identity, amount uint64) error {
	acc, err := store.GetAccount(id)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &types.Account{Owner: crypto.SystemProgramID}
	} else {
		acc = acc.Clone()
	}
	total, err := addUint64(acc.Lamports, amount)
	if err != nil {
		return err
	}
	acc.Lamports = total
	return store.PutAccount(id, acc)
}

// Debit removes lamports from a system account without crediting anyone.
func Debit(store Store, id crypto.Identity, amount uint64) error {
	acc, err := loadSystemAccount(store, id)
	if err != nil {
		return err
	}
	if acc.Lamports < amount {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, amount, acc.Lamports)
	}
	acc = acc.Clone()
	acc.Lamports -= amount
	return store.PutAccount(id, acc)
}
