package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/S3MTFoundationv0/s3mt.xyz/core"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/events"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/bank"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
	"github.com/S3MTFoundationv0/s3mt.xyz/storage"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func keygen(t *testing.T, path string) crypto.Identity {
	t.Helper()
	code, out, errOut := runCLI(t, "keygen", "--out", path)
	if code != 0 {
		t.Fatalf("keygen failed: %s", errOut)
	}
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "Identity: "); ok {
			id, err := crypto.ParseIdentity(strings.TrimSpace(rest))
			if err != nil {
				t.Fatalf("parse identity: %v", err)
			}
			return id
		}
	}
	t.Fatalf("identity missing from keygen output: %q", out)
	return crypto.Identity{}
}

func TestCLIEndToEnd(t *testing.T) {
	t.Setenv(passphraseEnv, "test-passphrase")
	dir := t.TempDir()

	mgr := state.NewManager(storage.NewMemDB())
	processor, err := core.NewProcessor(mgr, core.Options{Broker: events.NewBroker(8)})
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	server, err := rpc.NewServer(processor, rpc.ServerConfig{})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	adminKey := filepath.Join(dir, "admin.json")
	buyerKey := filepath.Join(dir, "buyer.json")
	admin := keygen(t, adminKey)
	buyer := keygen(t, buyerKey)
	if _, err := mgr.Update(func(tx *state.Tx) error {
		if err := bank.Credit(tx, admin, 1_000_000_000); err != nil {
			return err
		}
		return bank.Credit(tx, buyer, 1_000_000_000)
	}); err != nil {
		t.Fatalf("fund: %v", err)
	}

	code, out, _ := runCLI(t, "address", "--key", adminKey)
	if code != 0 || strings.TrimSpace(out) != admin.String() {
		t.Fatalf("address: code %d out %q", code, out)
	}

	treasury := crypto.MustDeriveAddress(crypto.SystemProgramID, []byte("treasury"))
	mint := crypto.MustDeriveAddress(crypto.SystemProgramID, []byte("mint"))
	code, out, errOut := runCLI(t, "--rpc", ts.URL, "initialize", "--key", adminKey,
		"--treasury", treasury.String(), "--stable-asset", mint.String())
	if code != 0 {
		t.Fatalf("initialize failed: %s", errOut)
	}
	if !strings.Contains(out, `"instruction": "initialize"`) {
		t.Fatalf("unexpected receipt: %s", out)
	}

	code, out, errOut = runCLI(t, "--rpc="+ts.URL, "config")
	if code != 0 || !strings.Contains(out, treasury.String()) {
		t.Fatalf("config: code %d out %q err %q", code, out, errOut)
	}

	code, _, errOut = runCLI(t, "--rpc", ts.URL, "purchase-native", "--key", buyerKey, "--amount", "500", "--allocation", "2000")
	if code != 0 {
		t.Fatalf("purchase-native failed: %s", errOut)
	}

	code, _, errOut = runCLI(t, "--rpc", ts.URL, "update-config", "--key", adminKey, "--paused", "true")
	if code != 0 {
		t.Fatalf("update-config failed: %s", errOut)
	}
	code, _, errOut = runCLI(t, "--rpc", ts.URL, "purchase-native", "--key", buyerKey, "--amount", "500", "--allocation", "2000")
	if code == 0 || !strings.Contains(errOut, "SalePaused") {
		t.Fatalf("expected SalePaused, got code %d err %q", code, errOut)
	}

	code, out, errOut = runCLI(t, "--rpc", ts.URL, "history", "--buyer", buyer.String())
	if code != 0 {
		t.Fatalf("history failed: %s", errOut)
	}
	if !strings.Contains(out, "native") || !strings.Contains(out, "2000") {
		t.Fatalf("unexpected history output: %s", out)
	}
}

func TestDeriveCommand(t *testing.T) {
	owner := crypto.MustDeriveAddress(crypto.SystemProgramID, []byte("owner"))
	mint := crypto.MustDeriveAddress(crypto.SystemProgramID, []byte("mint"))
	code, out, _ := runCLI(t, "derive", "--owner", owner.String(), "--mint", mint.String())
	if code != 0 {
		t.Fatalf("derive exited %d", code)
	}
	if strings.TrimSpace(out) != crypto.DeriveTokenAccount(owner, mint).String() {
		t.Fatalf("unexpected derived address %q", out)
	}
}

func TestUnknownCommandAndFlags(t *testing.T) {
	if code, _, errOut := runCLI(t, "bogus"); code == 0 || !strings.Contains(errOut, "Unknown command") {
		t.Fatalf("expected unknown command failure, got %d %q", code, errOut)
	}
	if code, _, _ := runCLI(t, "--rpc"); code == 0 {
		t.Fatalf("expected missing --rpc value failure")
	}
	if code, out, _ := runCLI(t, "help"); code != 0 || !strings.Contains(out, "purchase-stable") {
		t.Fatalf("help output missing commands: %q", out)
	}
	if code, _, errOut := runCLI(t, "keygen"); code == 0 || !strings.Contains(errOut, "--out") {
		t.Fatalf("expected --out requirement, got %q", errOut)
	}
}
