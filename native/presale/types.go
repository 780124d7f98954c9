package presale

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

const (
	// ConfigSeed is the derivation seed of the configuration singleton.
	ConfigSeed = "config"

	discriminatorSize = 8
	configPayloadSize = 32 + 32 + 32 + 1
	// ConfigAccountSize is the data size of the configuration account.
	ConfigAccountSize = discriminatorSize + configPayloadSize

	purchasePayloadSize = 32 + 8 + 8 + 8 + 8
	// PurchaseRecordSize is the encoded size of a purchase log payload.
	PurchaseRecordSize = discriminatorSize + purchasePayloadSize
)

// DefaultProgramID is the presale program identity used when the node
// configuration does not override it.
var DefaultProgramID = crypto.MustParseIdentity("5tz5xFvHNnJViiCZ3iHdgqrTC1GfcEvnB49KoxvQpR3D")

var (
	configDiscriminator   = discriminator("account:Config")
	purchaseDiscriminator = discriminator("event:PurchaseEvent")
)

func discriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte(name))
	var out [discriminatorSize]byte
	copy(out[:], sum[:discriminatorSize])
	return out
}

// ConfigAddress returns the address of the configuration singleton owned by
// programID.
func ConfigAddress(programID crypto.Identity) crypto.Identity {
	return crypto.MustDeriveAddress(programID, []byte(ConfigSeed))
}

// Config is the persisted sale configuration.
type Config struct {
	Admin               crypto.Identity `json:"admin"`
	Treasury            crypto.Identity `json:"treasury"`
	AcceptedStableAsset crypto.Identity `json:"acceptedStableAsset"`
	Paused              bool            `json:"paused"`
}

// Encode serialises the configuration into account data.
func (c *Config) Encode() []byte {
	buf := make([]byte, ConfigAccountSize)
	copy(buf[0:8], configDiscriminator[:])
	copy(buf[8:40], c.Admin[:])
	copy(buf[40:72], c.Treasury[:])
	copy(buf[72:104], c.AcceptedStableAsset[:])
	if c.Paused {
		buf[104] = 1
	}
	return buf
}

// DecodeConfig parses account data produced by Encode.
func DecodeConfig(data []byte) (*Config, error) {
	if len(data) != ConfigAccountSize {
		return nil, fmt.Errorf("presale: config length %d", len(data))
	}
	if !bytes.Equal(data[0:8], configDiscriminator[:]) {
		return nil, fmt.Errorf("presale: config discriminator mismatch")
	}
	cfg := new(Config)
	copy(cfg.Admin[:], data[8:40])
	copy(cfg.Treasury[:], data[40:72])
	copy(cfg.AcceptedStableAsset[:], data[72:104])
	switch data[104] {
	case 0:
	case 1:
		cfg.Paused = true
	default:
		return nil, fmt.Errorf("presale: invalid paused flag %d", data[104])
	}
	return cfg, nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Purchase is the audit record appended for every accepted payment. Exactly
// one of StableAmount and NativeAmount is non-zero.
type Purchase struct {
	Buyer            crypto.Identity `json:"buyer"`
	StableAmount     uint64          `json:"stableAmount"`
	NativeAmount     uint64          `json:"nativeAmount"`
	AllocationAmount uint64          `json:"allocationAmount"`
	Timestamp        int64           `json:"timestamp"`
}

// Currency names the asset the buyer paid with.
func (p *Purchase) Currency() string {
	if p.StableAmount > 0 {
		return CurrencyStable
	}
	return CurrencyNative
}

const (
	CurrencyStable = "stable"
	CurrencyNative = "native"
)

// Encode serialises the purchase as a log payload.
func (p *Purchase) Encode() []byte {
	buf := make([]byte, PurchaseRecordSize)
	copy(buf[0:8], purchaseDiscriminator[:])
	copy(buf[8:40], p.Buyer[:])
	binary.LittleEndian.PutUint64(buf[40:48], p.StableAmount)
	binary.LittleEndian.PutUint64(buf[48:56], p.NativeAmount)
	binary.LittleEndian.PutUint64(buf[56:64], p.AllocationAmount)
	binary.LittleEndian.PutUint64(buf[64:72], uint64(p.Timestamp))
	return buf
}

// DecodePurchase parses a log payload produced by Encode.
func DecodePurchase(data []byte) (*Purchase, error) {
	if len(data) != PurchaseRecordSize {
		return nil, fmt.Errorf("presale: purchase length %d", len(data))
	}
	if !bytes.Equal(data[0:8], purchaseDiscriminator[:]) {
		return nil, fmt.Errorf("presale: purchase discriminator mismatch")
	}
	p := &Purchase{
		StableAmount:     binary.LittleEndian.Uint64(data[40:48]),
		NativeAmount:     binary.LittleEndian.Uint64(data[48:56]),
		AllocationAmount: binary.LittleEndian.Uint64(data[56:64]),
		Timestamp:        int64(binary.LittleEndian.Uint64(data[64:72])),
	}
	copy(p.Buyer[:], data[8:40])
	return p, nil
}
