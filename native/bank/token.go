package bank

import (
	"fmt"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

// LoadMint reads and decodes the mint stored at id.
func LoadMint(store Store, id crypto.Identity) (*Mint, error) {
	acc, err := store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: mint %s", ErrAccountNotFound, id)
	}
	if acc.Owner != crypto.TokenProgramID {
		return nil, fmt.Errorf("%w: mint %s owned by %s", ErrInvalidAccountOwner, id, acc.Owner)
	}
	mint, err := DecodeMint(acc.Data)
	if err != nil {
		return nil, err
	}
	if !mint.Initialized {
		return nil, fmt.Errorf("%w: mint %s not initialized", ErrInvalidAccountData, id)
	}
	return mint, nil
}

// LoadTokenAccount reads and decodes the token account stored at id.
func LoadTokenAccount(store Store, id crypto.Identity) (*TokenAccount, error) {
	acc, err := store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: token account %s", ErrAccountNotFound, id)
	}
	if acc.Owner != crypto.TokenProgramID {
		return nil, fmt.Errorf("%w: token account %s owned by %s", ErrInvalidAccountOwner, id, acc.Owner)
	}
	ta, err := DecodeTokenAccount(acc.Data)
	if err != nil {
		return nil, err
	}
	if !ta.Initialized {
		return nil, fmt.Errorf("%w: token account %s not initialized", ErrInvalidAccountData, id)
	}
	return ta, nil
}

func storeTokenData(store Store, id crypto.Identity, data []byte) error {
	acc, err := store.GetAccount(id)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &types.Account{Lamports: RentExemptMinimum(len(data)), Owner: crypto.TokenProgramID}
	} else {
		acc = acc.Clone()
	}
	acc.Data = data
	return store.PutAccount(id, acc)
}

// InitializeMint creates a mint account at id. The rent deposit is minted
// into the account directly; the primitive is meant for genesis and tests.
func InitializeMint(store Store, id, authority crypto.Identity, decimals uint8) error {
	existing, err := store.GetAccount(id)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	mint := &Mint{Authority: authority, Decimals: decimals, Initialized: true}
	return storeTokenData(store, id, mint.Encode())
}

// InitializeTokenAccount creates a token account at id holding mint for owner.
func InitializeTokenAccount(store Store, id, mint, owner crypto.Identity) error {
	if _, err := LoadMint(store, mint); err != nil {
		return err
	}
	existing, err := store.GetAccount(id)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	ta := &TokenAccount{Mint: mint, Owner: owner, Initialized: true}
	return storeTokenData(store, id, ta.Encode())
}

// MintTo increases the supply of mint and credits the destination account.
func MintTo(store Store, mintID, to, authority crypto.Identity, amount uint64) error {
	mint, err := LoadMint(store, mintID)
	if err != nil {
		return err
	}
	if mint.Authority != authority {
		return fmt.Errorf("%w: mint authority", ErrOwnerMismatch)
	}
	dst, err := LoadTokenAccount(store, to)
	if err != nil {
		return err
	}
	if dst.Mint != mintID {
		return ErrMintMismatch
	}
	if dst.Frozen {
		return ErrAccountFrozen
	}
	supply, err := addUint64(mint.Supply, amount)
	if err != nil {
		return err
	}
	balance, err := addUint64(dst.Amount, amount)
	if err != nil {
		return err
	}
	mint.Supply = supply
	dst.Amount = balance
	if err := storeTokenData(store, mintID, mint.Encode()); err != nil {
		return err
	}
	return storeTokenData(store, to, dst.Encode())
}

// SetFrozen toggles the frozen flag of a token account.
func SetFrozen(store Store, id crypto.Identity, frozen bool) error {
	ta, err := LoadTokenAccount(store, id)
	if err != nil {
		return err
	}
	ta.Frozen = frozen
	return storeTokenData(store, id, ta.Encode())
}

// TransferToken moves amount tokens from one token account to another.
// authority must be the owner of the source account.
func TransferToken(store Store, from, to, authority crypto.Identity, amount uint64) error {
	src, err := LoadTokenAccount(store, from)
	if err != nil {
		return err
	}
	dst, err := LoadTokenAccount(store, to)
	if err != nil {
		return err
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: transfer authority", ErrOwnerMismatch)
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if src.Frozen || dst.Frozen {
		return ErrAccountFrozen
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount, src.Amount)
	}
	if from == to {
		return nil
	}
	balance, err := addUint64(dst.Amount, amount)
	if err != nil {
		return err
	}
	src.Amount -= amount
	dst.Amount = balance
	if err := storeTokenData(store, from, src.Encode()); err != nil {
		return err
	}
	return storeTokenData(store, to, dst.Encode())
}
