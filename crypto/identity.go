package crypto

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// IdentityLength is the width of every account reference in the ledger.
const IdentityLength = 32

// Identity is a fixed-size public account reference. For keypair-backed
// accounts it is the raw ed25519 public key; program-derived accounts use the
// output of DeriveAddress. The text form is base58.
type Identity [IdentityLength]byte

// ZeroIdentity is the all-zero identity. It doubles as the system program id.
var ZeroIdentity Identity

// NewIdentity copies b into an Identity. b must be exactly 32 bytes.
func NewIdentity(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentityLength {
		return id, fmt.Errorf("crypto: identity must be %d bytes (got %d)", IdentityLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ParseIdentity decodes a base58 identity string.
func ParseIdentity(s string) (Identity, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Identity{}, fmt.Errorf("crypto: empty identity")
	}
	decoded := base58.Decode(trimmed)
	if len(decoded) == 0 {
		return Identity{}, fmt.Errorf("crypto: invalid base58 identity %q", s)
	}
	return NewIdentity(decoded)
}

// MustParseIdentity is ParseIdentity for package-level constants.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the raw identity bytes.
func (id Identity) Bytes() []byte {
	out := make([]byte, IdentityLength)
	copy(out, id[:])
	return out
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == ZeroIdentity
}

// Equal compares two identities.
func (id Identity) Equal(other Identity) bool {
	return bytes.Equal(id[:], other[:])
}

// MarshalText encodes the identity as base58 for JSON/TOML/YAML.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a base58 identity.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
