package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/S3MTFoundationv0/s3mt.xyz/cmd/internal/passphrase"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
)

func runKeygen(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	out := fs.String("out", "", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		return env.fail("Error: --out is required")
	}
	if _, err := os.Stat(path); err == nil {
		return env.fail("Error: %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return env.fail("Error: %v", err)
	}
	pass, err := passphrase.NewConfirmingSource(passphraseEnv).Get()
	if err != nil {
		return env.fail("Error: %v", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return env.fail("Error generating key: %v", err)
	}
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		return env.fail("Error writing keystore: %v", err)
	}
	fmt.Fprintf(env.stdout, "Identity: %s\n", key.Identity())
	fmt.Fprintf(env.stdout, "Keystore: %s\n", path)
	return 0
}

func runAddress(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	keyFile := fs.String("key", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(*keyFile)
	if err != nil {
		return env.fail("Error loading key: %v", err)
	}
	fmt.Fprintln(env.stdout, key.Identity())
	return 0
}

func runDerive(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	ownerFlag := fs.String("owner", "", "token account owner")
	mintFlag := fs.String("mint", "", "token mint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	owner, err := crypto.ParseIdentity(strings.TrimSpace(*ownerFlag))
	if err != nil {
		return env.fail("Error: invalid --owner: %v", err)
	}
	mint, err := crypto.ParseIdentity(strings.TrimSpace(*mintFlag))
	if err != nil {
		return env.fail("Error: invalid --mint: %v", err)
	}
	fmt.Fprintln(env.stdout, crypto.DeriveTokenAccount(owner, mint))
	return 0
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("--key is required")
	}
	pass, err := passphrase.NewSource(passphraseEnv).Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return key, nil
}

func parseOptionalIdentity(raw string) (*crypto.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := crypto.ParseIdentity(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
