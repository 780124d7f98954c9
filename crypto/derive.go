package crypto

import (
	"errors"

	"lukechampine.com/blake3"
)

const (
	derivedAddressTag = "ProgramDerivedAddress"
	maxSeeds          = 16
	maxSeedLength     = 32
)

var (
	// ErrTooManySeeds is returned when a derivation uses more than 16 seeds.
	ErrTooManySeeds = errors.New("crypto: too many derivation seeds")
	// ErrSeedTooLong is returned when a single seed exceeds 32 bytes.
	ErrSeedTooLong = errors.New("crypto: derivation seed too long")

	// AssociatedTokenProgramID owns the derivation namespace for per-owner token
	// accounts.
	AssociatedTokenProgramID = MustParseIdentity("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	// TokenProgramID owns mints and token accounts.
	TokenProgramID = MustParseIdentity("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	// SystemProgramID owns plain keypair accounts holding native balance.
	SystemProgramID = ZeroIdentity
)

// DeriveAddress computes the deterministic address for the supplied seeds
// under program. The hash covers each seed length-prefixed, then the program
// id and a fixed domain tag, so distinct seed splits never collide.
func DeriveAddress(program Identity, seeds ...[]byte) (Identity, error) {
	if len(seeds) > maxSeeds {
		return Identity{}, ErrTooManySeeds
	}
	h := blake3.New(IdentityLength, nil)
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return Identity{}, ErrSeedTooLong
		}
		_, _ = h.Write([]byte{byte(len(seed))})
		_, _ = h.Write(seed)
	}
	_, _ = h.Write(program[:])
	_, _ = h.Write([]byte(derivedAddressTag))
	var out Identity
	copy(out[:], h.Sum(nil))
	return out, nil
}

// MustDeriveAddress panics on invalid seeds. Only use with static seeds.
func MustDeriveAddress(program Identity, seeds ...[]byte) Identity {
	id, err := DeriveAddress(program, seeds...)
	if err != nil {
		panic(err)
	}
	return id
}

// DeriveTokenAccount returns the canonical token account address holding mint
// on behalf of owner.
func DeriveTokenAccount(owner, mint Identity) Identity {
	return MustDeriveAddress(AssociatedTokenProgramID, owner[:], TokenProgramID[:], mint[:])
}
