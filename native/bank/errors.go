package bank

import "errors"

var (
	ErrInsufficientFunds   = errors.New("bank: insufficient funds")
	ErrAccountFrozen       = errors.New("bank: account frozen")
	ErrMintMismatch        = errors.New("bank: mint mismatch")
	ErrOwnerMismatch       = errors.New("bank: owner does not match")
	ErrAccountNotFound     = errors.New("bank: account not found")
	ErrAccountExists       = errors.New("bank: account already in use")
	ErrInvalidAccountOwner = errors.New("bank: invalid account owner")
	ErrInvalidAccountData  = errors.New("bank: invalid account data")
	ErrOverflow            = errors.New("bank: arithmetic overflow")
)
