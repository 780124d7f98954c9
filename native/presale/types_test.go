package presale

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
)

func TestConfigLayout(t *testing.T) {
	cfg := &Config{Admin: testIdentity(1), Treasury: testIdentity(2), AcceptedStableAsset: testIdentity(3), Paused: true}
	data := cfg.Encode()
	if len(data) != 105 {
		t.Fatalf("expected 105 bytes, got %d", len(data))
	}
	if hex.EncodeToString(data[:8]) != hex.EncodeToString(configDiscriminator[:]) {
		t.Fatalf("missing discriminator")
	}
	decoded, err := DecodeConfig(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *cfg {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	data[0] ^= 0xff
	if _, err := DecodeConfig(data); err == nil {
		t.Fatalf("expected discriminator error")
	}
}

func TestPurchaseLayout(t *testing.T) {
	p := &Purchase{Buyer: testIdentity(9), NativeAmount: 5, AllocationAmount: 7, Timestamp: -1}
	data := p.Encode()
	if len(data) != PurchaseRecordSize {
		t.Fatalf("unexpected size %d", len(data))
	}
	decoded, err := DecodePurchase(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *p {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.Currency() != CurrencyNative {
		t.Fatalf("unexpected currency %s", decoded.Currency())
	}
}

func TestClassifyCodes(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
		name string
	}{
		{ErrSalePaused, 6000, "SalePaused"},
		{ErrZeroAmount, 6001, "ZeroAmount"},
		{fmt.Errorf("%w: buyer", ErrUnauthorized), 6002, "Unauthorized"},
		{ErrAssetMismatch, 6003, "AssetMismatch"},
		{ErrTransferFailure, 6004, "TransferFailure"},
		{ErrAlreadyInitialized, 6005, "AlreadyInitialized"},
		{ErrNotInitialized, 6006, "NotInitialized"},
		{ErrInvalidArgument, 6007, "InvalidArgument"},
	}
	for _, tc := range cases {
		code, name, ok := Classify(tc.err)
		if !ok || code != tc.code || name != tc.name {
			t.Fatalf("classify %v: got %d %s %v", tc.err, code, name, ok)
		}
	}
	if _, _, ok := Classify(errors.New("other")); ok {
		t.Fatalf("expected unrelated error to be unclassified")
	}
}

func TestDecodeRecord(t *testing.T) {
	p := &Purchase{Buyer: testIdentity(4), StableAmount: 3, AllocationAmount: 9, Timestamp: 11}
	evt, err := DecodeRecord(types.LogRecord{Kind: LogKindPurchase, Payload: p.Encode()})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	attrs := evt.Event().Attributes
	if attrs["currency"] != CurrencyStable || attrs["stableAmount"] != "3" || attrs["buyer"] != p.Buyer.String() {
		t.Fatalf("unexpected attributes: %+v", attrs)
	}
	if _, err := DecodeRecord(types.LogRecord{Kind: "other"}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestParseAccountsCount(t *testing.T) {
	if _, err := ParsePurchaseStableAccounts(make([]types.AccountMeta, 4)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	accts, err := ParsePurchaseNativeAccounts([]types.AccountMeta{{Key: testIdentity(1)}, {Key: testIdentity(2)}, {Key: testIdentity(3)}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if accts.Config.Key != testIdentity(3) {
		t.Fatalf("unexpected binding: %+v", accts)
	}
}
