package types

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

// AccountMeta references an account a request touches and declares whether
// the account must sign and whether the instruction may write to it.
type AccountMeta struct {
	Key      crypto.Identity `json:"key"`
	Signer   bool            `json:"signer"`
	Writable bool            `json:"writable"`
}

// Message is the signed portion of a request.
type Message struct {
	Program     crypto.Identity `json:"program"`
	Instruction string          `json:"instruction"`
	Accounts    []AccountMeta   `json:"accounts"`
	Data        []byte          `json:"data"`
	Nonce       uint64          `json:"nonce"`
}

// Signature binds a signer identity to an ed25519 signature over the message
// digest.
type Signature struct {
	Signer crypto.Identity `json:"signer"`
	Sig    []byte          `json:"sig"`
}

// Request is a single atomic invocation submitted to the runtime.
type Request struct {
	Message    Message     `json:"message"`
	Signatures []Signature `json:"signatures"`
}

// Digest returns keccak256 over the RLP encoding of the message. Signatures
// and replay protection are both keyed by this value.
func (m *Message) Digest() ([32]byte, error) {
	var out [32]byte
	if m == nil {
		return out, errors.New("types: nil message")
	}
	encoded, err := rlp.EncodeToBytes(m)
	if err != nil {
		return out, fmt.Errorf("types: encode message: %w", err)
	}
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out, nil
}

// Sign appends a signature by key over the message digest. The key must be
// listed as a signer account.
func (r *Request) Sign(key *crypto.PrivateKey) error {
	if r == nil || key == nil {
		return errors.New("types: nil request or key")
	}
	id := key.Identity()
	listed := false
	for _, meta := range r.Message.Accounts {
		if meta.Key == id && meta.Signer {
			listed = true
			break
		}
	}
	if !listed {
		return fmt.Errorf("types: %s is not a signer of this message", id)
	}
	digest, err := r.Message.Digest()
	if err != nil {
		return err
	}
	for i, existing := range r.Signatures {
		if existing.Signer == id {
			r.Signatures[i].Sig = key.Sign(digest[:])
			return nil
		}
	}
	r.Signatures = append(r.Signatures, Signature{Signer: id, Sig: key.Sign(digest[:])})
	return nil
}

// FeePayer returns the first signer listed in the message.
func (m *Message) FeePayer() (crypto.Identity, bool) {
	for _, meta := range m.Accounts {
		if meta.Signer {
			return meta.Key, true
		}
	}
	return crypto.Identity{}, false
}
