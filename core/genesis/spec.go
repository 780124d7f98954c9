package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

// Spec seeds a fresh ledger with native balances, token mints and token
// balances.
type Spec struct {
	GenesisTime string            `json:"genesisTime"`
	Alloc       map[string]string `json:"alloc"` // identity -> lamports
	Mints       []MintSpec        `json:"mints"`
}

// MintSpec declares a token mint and the balances held in the associated
// token accounts of each owner.
type MintSpec struct {
	Address   string            `json:"address"`
	Authority string            `json:"authority"`
	Decimals  uint8             `json:"decimals"`
	Balances  map[string]string `json:"balances"` // owner -> amount
}

type allocation struct {
	id     crypto.Identity
	amount uint64
}

type mintPlan struct {
	address   crypto.Identity
	authority crypto.Identity
	decimals  uint8
	balances  []allocation
}

type plan struct {
	timestamp time.Time
	alloc     []allocation
	mints     []mintPlan
}

// LoadSpec reads and validates a genesis file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes and validates a genesis document.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if _, err := spec.plan(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Hash fingerprints the spec so a data dir can detect a changed genesis.
func (s *Spec) Hash() ([32]byte, error) {
	var out [32]byte
	encoded, err := json.Marshal(s)
	if err != nil {
		return out, err
	}
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out, nil
}

func parseAllocations(raw map[string]string, field string) ([]allocation, error) {
	out := make([]allocation, 0, len(raw))
	for key, value := range raw {
		id, err := crypto.ParseIdentity(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", field, key, err)
		}
		amount, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s %q amount %q: %w", field, key, value, err)
		}
		out = append(out, allocation{id: id, amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.String() < out[j].id.String() })
	return out, nil
}

func (s *Spec) plan() (*plan, error) {
	if s == nil {
		return nil, errors.New("genesis spec must not be nil")
	}
	p := &plan{}
	if trimmed := strings.TrimSpace(s.GenesisTime); trimmed != "" {
		ts, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return nil, fmt.Errorf("genesisTime: %w", err)
		}
		p.timestamp = ts.UTC()
	}
	alloc, err := parseAllocations(s.Alloc, "alloc")
	if err != nil {
		return nil, err
	}
	p.alloc = alloc

	seen := make(map[crypto.Identity]struct{}, len(s.Mints))
	for i, mint := range s.Mints {
		address, err := crypto.ParseIdentity(strings.TrimSpace(mint.Address))
		if err != nil {
			return nil, fmt.Errorf("mints[%d].address: %w", i, err)
		}
		if _, dup := seen[address]; dup {
			return nil, fmt.Errorf("mints[%d]: duplicate mint %s", i, address)
		}
		seen[address] = struct{}{}
		authority, err := crypto.ParseIdentity(strings.TrimSpace(mint.Authority))
		if err != nil {
			return nil, fmt.Errorf("mints[%d].authority: %w", i, err)
		}
		balances, err := parseAllocations(mint.Balances, fmt.Sprintf("mints[%d].balances", i))
		if err != nil {
			return nil, err
		}
		p.mints = append(p.mints, mintPlan{address: address, authority: authority, decimals: mint.Decimals, balances: balances})
	}
	sort.Slice(p.mints, func(i, j int) bool { return p.mints[i].address.String() < p.mints[j].address.String() })
	return p, nil
}
