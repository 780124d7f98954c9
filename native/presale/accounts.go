package presale

import (
	"errors"
	"fmt"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/bank"
)

// InitializeAccounts lists the accounts bound to an initialize request.
type InitializeAccounts struct {
	Admin  types.AccountMeta
	Config types.AccountMeta
}

// PurchaseStableAccounts lists the accounts bound to a stable purchase.
type PurchaseStableAccounts struct {
	Buyer         types.AccountMeta
	BuyerToken    types.AccountMeta
	TreasuryToken types.AccountMeta
	Config        types.AccountMeta
	StableMint    types.AccountMeta
}

// PurchaseNativeAccounts lists the accounts bound to a native purchase.
type PurchaseNativeAccounts struct {
	Buyer    types.AccountMeta
	Treasury types.AccountMeta
	Config   types.AccountMeta
}

// UpdateConfigAccounts lists the accounts bound to a configuration update.
type UpdateConfigAccounts struct {
	Admin  types.AccountMeta
	Config types.AccountMeta
}

func expectAccounts(metas []types.AccountMeta, want int, instruction string) error {
	if len(metas) != want {
		return fmt.Errorf("%w: %s expects %d accounts, got %d", ErrInvalidArgument, instruction, want, len(metas))
	}
	return nil
}

// ParseInitializeAccounts binds request accounts by position:
// [admin, config].
func ParseInitializeAccounts(metas []types.AccountMeta) (InitializeAccounts, error) {
	if err := expectAccounts(metas, 2, InstructionInitialize); err != nil {
		return InitializeAccounts{}, err
	}
	return InitializeAccounts{Admin: metas[0], Config: metas[1]}, nil
}

// ParsePurchaseStableAccounts binds request accounts by position:
// [buyer, buyer token, treasury token, config, stable mint].
func ParsePurchaseStableAccounts(metas []types.AccountMeta) (PurchaseStableAccounts, error) {
	if err := expectAccounts(metas, 5, InstructionPurchaseStable); err != nil {
		return PurchaseStableAccounts{}, err
	}
	return PurchaseStableAccounts{
		Buyer:         metas[0],
		BuyerToken:    metas[1],
		TreasuryToken: metas[2],
		Config:        metas[3],
		StableMint:    metas[4],
	}, nil
}

// ParsePurchaseNativeAccounts binds request accounts by position:
// [buyer, treasury, config].
func ParsePurchaseNativeAccounts(metas []types.AccountMeta) (PurchaseNativeAccounts, error) {
	if err := expectAccounts(metas, 3, InstructionPurchaseNative); err != nil {
		return PurchaseNativeAccounts{}, err
	}
	return PurchaseNativeAccounts{Buyer: metas[0], Treasury: metas[1], Config: metas[2]}, nil
}

// ParseUpdateConfigAccounts binds request accounts by position:
// [admin, config].
func ParseUpdateConfigAccounts(metas []types.AccountMeta) (UpdateConfigAccounts, error) {
	if err := expectAccounts(metas, 2, InstructionUpdateConfig); err != nil {
		return UpdateConfigAccounts{}, err
	}
	return UpdateConfigAccounts{Admin: metas[0], Config: metas[1]}, nil
}

func requireSigner(meta types.AccountMeta, role string) error {
	if !meta.Signer {
		return fmt.Errorf("%w: %s %s did not sign", ErrUnauthorized, role, meta.Key)
	}
	return nil
}

func requireWritable(meta types.AccountMeta, role string) error {
	if !meta.Writable {
		return fmt.Errorf("%w: %s %s must be writable", ErrUnauthorized, role, meta.Key)
	}
	return nil
}

// validateTokenAccount checks that meta names the associated token account of
// authority for mint.
func validateTokenAccount(store bank.Store, meta types.AccountMeta, mint, authority crypto.Identity, role string) error {
	if err := requireWritable(meta, role); err != nil {
		return err
	}
	account, err := bank.LoadTokenAccount(store, meta.Key)
	if err != nil {
		if errors.Is(err, bank.ErrAccountNotFound) || errors.Is(err, bank.ErrInvalidAccountOwner) || errors.Is(err, bank.ErrInvalidAccountData) {
			return fmt.Errorf("%w: %s: %w", ErrUnauthorized, role, err)
		}
		return err
	}
	if account.Mint != mint {
		return fmt.Errorf("%w: %s holds %s, want %s", ErrAssetMismatch, role, account.Mint, mint)
	}
	if account.Owner != authority {
		return fmt.Errorf("%w: %s owned by %s, want %s", ErrUnauthorized, role, account.Owner, authority)
	}
	if meta.Key != crypto.DeriveTokenAccount(authority, mint) {
		return fmt.Errorf("%w: %s %s is not the associated account of %s", ErrUnauthorized, role, meta.Key, authority)
	}
	return nil
}
