package main

import (
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
)

type builder func(programID crypto.Identity, signer crypto.Identity, nonce uint64) (types.Message, error)

// submit signs the message produced by build with the keystore at keyFile and
// prints the receipt.
func submit(env *cliEnv, keyFile string, nonce uint64, build builder) int {
	key, err := loadKey(keyFile)
	if err != nil {
		return env.fail("Error loading key: %v", err)
	}
	c, err := env.client()
	if err != nil {
		return env.fail("Error: %v", err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	addrs, err := c.Addresses(ctx)
	if err != nil {
		return env.fail("Error fetching program addresses: %v", err)
	}
	if nonce == 0 {
		nonce = uint64(time.Now().UnixNano())
	}
	msg, err := build(addrs.ProgramID, key.Identity(), nonce)
	if err != nil {
		return env.fail("Error building request: %v", err)
	}
	req := &types.Request{Message: msg}
	if err := req.Sign(key); err != nil {
		return env.fail("Error signing request: %v", err)
	}
	receipt, err := c.Submit(ctx, req)
	if err != nil {
		return env.fail("Request rejected: %v", err)
	}
	return env.printJSON(receipt)
}

func runInitialize(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("initialize", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	keyFile := fs.String("key", "", "admin keystore file")
	treasuryFlag := fs.String("treasury", "", "treasury identity")
	assetFlag := fs.String("stable-asset", "", "accepted stable asset mint")
	nonce := fs.Uint64("nonce", 0, "request nonce (defaults to the current time)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	treasury, err := crypto.ParseIdentity(strings.TrimSpace(*treasuryFlag))
	if err != nil {
		return env.fail("Error: invalid --treasury: %v", err)
	}
	asset, err := crypto.ParseIdentity(strings.TrimSpace(*assetFlag))
	if err != nil {
		return env.fail("Error: invalid --stable-asset: %v", err)
	}
	return submit(env, *keyFile, *nonce, func(programID, signer crypto.Identity, nonce uint64) (types.Message, error) {
		return presale.NewInitializeMessage(programID, signer, presale.InitializeArgs{
			Treasury:            treasury,
			AcceptedStableAsset: asset,
		}, nonce)
	})
}

func runPurchaseStable(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("purchase-stable", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	keyFile := fs.String("key", "", "buyer keystore file")
	amount := fs.Uint64("amount", 0, "stable asset amount in base units")
	allocation := fs.Uint64("allocation", 0, "allocation amount to record")
	nonce := fs.Uint64("nonce", 0, "request nonce (defaults to the current time)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, code := fetchConfig(env)
	if cfg == nil {
		return code
	}
	return submit(env, *keyFile, *nonce, func(programID, signer crypto.Identity, nonce uint64) (types.Message, error) {
		return presale.NewPurchaseStableMessage(programID, signer, cfg.Treasury, cfg.AcceptedStableAsset,
			presale.PurchaseStableArgs{StableAmount: *amount, AllocationAmount: *allocation}, nonce)
	})
}

func runPurchaseNative(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("purchase-native", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	keyFile := fs.String("key", "", "buyer keystore file")
	amount := fs.Uint64("amount", 0, "native amount in lamports")
	allocation := fs.Uint64("allocation", 0, "allocation amount to record")
	nonce := fs.Uint64("nonce", 0, "request nonce (defaults to the current time)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, code := fetchConfig(env)
	if cfg == nil {
		return code
	}
	return submit(env, *keyFile, *nonce, func(programID, signer crypto.Identity, nonce uint64) (types.Message, error) {
		return presale.NewPurchaseNativeMessage(programID, signer, cfg.Treasury,
			presale.PurchaseNativeArgs{NativeAmount: *amount, AllocationAmount: *allocation}, nonce)
	})
}

func runUpdateConfig(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("update-config", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	keyFile := fs.String("key", "", "admin keystore file")
	treasuryFlag := fs.String("treasury", "", "new treasury identity")
	assetFlag := fs.String("stable-asset", "", "new accepted stable asset mint")
	pausedFlag := fs.String("paused", "", "pause flag (true or false)")
	nonce := fs.Uint64("nonce", 0, "request nonce (defaults to the current time)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var update presale.UpdateConfigArgs
	var err error
	if update.Treasury, err = parseOptionalIdentity(*treasuryFlag); err != nil {
		return env.fail("Error: invalid --treasury: %v", err)
	}
	if update.AcceptedStableAsset, err = parseOptionalIdentity(*assetFlag); err != nil {
		return env.fail("Error: invalid --stable-asset: %v", err)
	}
	if raw := strings.TrimSpace(*pausedFlag); raw != "" {
		paused, err := strconv.ParseBool(raw)
		if err != nil {
			return env.fail("Error: invalid --paused: %v", err)
		}
		update.Paused = &paused
	}
	return submit(env, *keyFile, *nonce, func(programID, signer crypto.Identity, nonce uint64) (types.Message, error) {
		return presale.NewUpdateConfigMessage(programID, signer, update, nonce)
	})
}

func fetchConfig(env *cliEnv) (*rpc.ConfigView, int) {
	c, err := env.client()
	if err != nil {
		return nil, env.fail("Error: %v", err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	view, err := c.Config(ctx)
	if err != nil {
		return nil, env.fail("Error fetching presale config: %v", err)
	}
	return view, 0
}
