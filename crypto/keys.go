package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// PrivateKey wraps an ed25519 signing key.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GeneratePrivateKey creates a fresh random keypair.
func GeneratePrivateKey() (*PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: priv}, nil
}

// PrivateKeyFromSeed rebuilds a keypair from its 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes", ed25519.SeedSize)
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed the key was derived from.
func (k *PrivateKey) Seed() []byte {
	return k.key.Seed()
}

// Identity returns the public identity of the keypair.
func (k *PrivateKey) Identity() Identity {
	var id Identity
	copy(id[:], k.key.Public().(ed25519.PublicKey))
	return id
}

// Sign signs digest.
func (k *PrivateKey) Sign(digest []byte) []byte {
	return ed25519.Sign(k.key, digest)
}

// Verify checks sig over digest against the identity interpreted as an
// ed25519 public key.
func Verify(id Identity, digest, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(id[:]), digest, sig)
}
