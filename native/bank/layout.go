package bank

import (
	"encoding/binary"
	"fmt"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

const (
	// MintSize is the encoded size of a Mint.
	MintSize = 32 + 8 + 1 + 1
	// TokenAccountSize is the encoded size of a TokenAccount.
	TokenAccountSize = 32 + 32 + 8 + 1 + 1
)

// Mint describes a fungible token.
type Mint struct {
	Authority   crypto.Identity `json:"authority"`
	Supply      uint64          `json:"supply"`
	Decimals    uint8           `json:"decimals"`
	Initialized bool            `json:"initialized"`
}

// TokenAccount holds a balance of a single mint on behalf of Owner.
type TokenAccount struct {
	Mint        crypto.Identity `json:"mint"`
	Owner       crypto.Identity `json:"owner"`
	Amount      uint64          `json:"amount"`
	Frozen      bool            `json:"frozen"`
	Initialized bool            `json:"initialized"`
}

func putBool(b []byte, v bool) {
	if v {
		b[0] = 1
		return
	}
	b[0] = 0
}

func readBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte %d", ErrInvalidAccountData, b)
	}
}

// Encode serialises the mint.
func (m *Mint) Encode() []byte {
	buf := make([]byte, MintSize)
	copy(buf[0:32], m.Authority[:])
	binary.LittleEndian.PutUint64(buf[32:40], m.Supply)
	buf[40] = m.Decimals
	putBool(buf[41:], m.Initialized)
	return buf
}

// DecodeMint parses a mint from account data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint length %d", ErrInvalidAccountData, len(data))
	}
	m := &Mint{Supply: binary.LittleEndian.Uint64(data[32:40]), Decimals: data[40]}
	copy(m.Authority[:], data[0:32])
	initialized, err := readBool(data[41])
	if err != nil {
		return nil, err
	}
	m.Initialized = initialized
	return m, nil
}

// Encode serialises the token account.
func (a *TokenAccount) Encode() []byte {
	buf := make([]byte, TokenAccountSize)
	copy(buf[0:32], a.Mint[:])
	copy(buf[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(buf[64:72], a.Amount)
	putBool(buf[72:], a.Frozen)
	putBool(buf[73:], a.Initialized)
	return buf
}

// DecodeTokenAccount parses a token account from account data.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("%w: token account length %d", ErrInvalidAccountData, len(data))
	}
	a := &TokenAccount{Amount: binary.LittleEndian.Uint64(data[64:72])}
	copy(a.Mint[:], data[0:32])
	copy(a.Owner[:], data[32:64])
	frozen, err := readBool(data[72])
	if err != nil {
		return nil, err
	}
	initialized, err := readBool(data[73])
	if err != nil {
		return nil, err
	}
	a.Frozen = frozen
	a.Initialized = initialized
	return a, nil
}
