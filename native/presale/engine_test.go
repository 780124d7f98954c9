package presale

import (
	"errors"
	"testing"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/events"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/bank"
	"github.com/S3MTFoundationv0/s3mt.xyz/storage"
)

const (
	testNow        int64 = 1_700_000_000
	buyerStable          = 1_000_000
	buyerNative          = 5_000_000_000
	adminNativeBal       = 1_000_000_000
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

type fixture struct {
	t        *testing.T
	mgr      *state.Manager
	engine   *Engine
	emitter  *capturingEmitter
	admin    crypto.Identity
	buyer    crypto.Identity
	treasury crypto.Identity
	mint     crypto.Identity
	buyerATA crypto.Identity
	tresATA  crypto.Identity
}

func testIdentity(fill byte) crypto.Identity {
	var id crypto.Identity
	for i := range id {
		id[i] = fill
	}
	return id
}

func meta(key crypto.Identity, signer, writable bool) types.AccountMeta {
	return types.AccountMeta{Key: key, Signer: signer, Writable: writable}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	f := &fixture{
		t:        t,
		mgr:      state.NewManager(db),
		engine:   NewEngine(DefaultProgramID),
		emitter:  &capturingEmitter{},
		admin:    testIdentity(0x01),
		buyer:    testIdentity(0x02),
		treasury: testIdentity(0x03),
		mint:     testIdentity(0x50),
	}
	f.engine.SetNowFunc(func() int64 { return testNow })
	f.engine.SetEmitter(f.emitter)
	f.buyerATA = crypto.DeriveTokenAccount(f.buyer, f.mint)
	f.tresATA = crypto.DeriveTokenAccount(f.treasury, f.mint)
	mintAuthority := testIdentity(0x51)

	if _, err := f.mgr.Update(func(tx *state.Tx) error {
		for _, step := range []error{
			bank.Credit(tx, f.admin, adminNativeBal),
			bank.Credit(tx, f.buyer, buyerNative),
			bank.InitializeMint(tx, f.mint, mintAuthority, 6),
			bank.InitializeTokenAccount(tx, f.buyerATA, f.mint, f.buyer),
			bank.InitializeTokenAccount(tx, f.tresATA, f.mint, f.treasury),
			bank.MintTo(tx, f.mint, f.buyerATA, mintAuthority, buyerStable),
		} {
			if step != nil {
				return step
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return f
}

func (f *fixture) run(fn func(*Engine) error) error {
	_, err := f.mgr.Update(func(tx *state.Tx) error {
		f.engine.SetState(tx)
		defer f.engine.SetState(nil)
		return fn(f.engine)
	})
	return err
}

func (f *fixture) initialize() {
	f.t.Helper()
	err := f.run(func(e *Engine) error {
		_, err := e.Initialize(f.initAccounts(f.admin), InitializeArgs{Treasury: f.treasury, AcceptedStableAsset: f.mint})
		return err
	})
	if err != nil {
		f.t.Fatalf("initialize: %v", err)
	}
}

func (f *fixture) initAccounts(caller crypto.Identity) InitializeAccounts {
	return InitializeAccounts{Admin: meta(caller, true, true), Config: meta(ConfigAddress(DefaultProgramID), false, true)}
}

func (f *fixture) stableAccounts() PurchaseStableAccounts {
	return PurchaseStableAccounts{
		Buyer:         meta(f.buyer, true, false),
		BuyerToken:    meta(f.buyerATA, false, true),
		TreasuryToken: meta(f.tresATA, false, true),
		Config:        meta(ConfigAddress(DefaultProgramID), false, false),
		StableMint:    meta(f.mint, false, false),
	}
}

func (f *fixture) nativeAccounts() PurchaseNativeAccounts {
	return PurchaseNativeAccounts{
		Buyer:    meta(f.buyer, true, true),
		Treasury: meta(f.treasury, false, true),
		Config:   meta(ConfigAddress(DefaultProgramID), false, false),
	}
}

func (f *fixture) updateAccounts(caller crypto.Identity) UpdateConfigAccounts {
	return UpdateConfigAccounts{Admin: meta(caller, true, false), Config: meta(ConfigAddress(DefaultProgramID), false, true)}
}

func (f *fixture) config() *Config {
	f.t.Helper()
	var cfg *Config
	if err := f.mgr.View(func(tx *state.Tx) error {
		var err error
		cfg, err = LoadConfig(tx, DefaultProgramID)
		return err
	}); err != nil {
		f.t.Fatalf("load config: %v", err)
	}
	return cfg
}

func (f *fixture) tokenBalance(id crypto.Identity) uint64 {
	f.t.Helper()
	var amount uint64
	if err := f.mgr.View(func(tx *state.Tx) error {
		ta, err := bank.LoadTokenAccount(tx, id)
		if err != nil {
			return err
		}
		amount = ta.Amount
		return nil
	}); err != nil {
		f.t.Fatalf("token balance: %v", err)
	}
	return amount
}

func (f *fixture) lamports(id crypto.Identity) uint64 {
	f.t.Helper()
	var lamports uint64
	if err := f.mgr.View(func(tx *state.Tx) error {
		acc, err := tx.GetAccount(id)
		if err != nil {
			return err
		}
		if acc != nil {
			lamports = acc.Lamports
		}
		return nil
	}); err != nil {
		f.t.Fatalf("lamports: %v", err)
	}
	return lamports
}

func (f *fixture) purchases() []*Purchase {
	f.t.Helper()
	records, err := f.mgr.ReadLog(0, 0)
	if err != nil {
		f.t.Fatalf("read log: %v", err)
	}
	out := make([]*Purchase, 0)
	for _, rec := range records {
		if rec.Kind != LogKindPurchase {
			continue
		}
		p, err := DecodePurchase(rec.Payload)
		if err != nil {
			f.t.Fatalf("decode purchase: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func TestInitializeCreatesConfig(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	cfg := f.config()
	if cfg.Admin != f.admin || cfg.Treasury != f.treasury || cfg.AcceptedStableAsset != f.mint || cfg.Paused {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	rent := bank.RentExemptMinimum(ConfigAccountSize)
	if got := f.lamports(f.admin); got != adminNativeBal-rent {
		t.Fatalf("expected admin to pay %d rent, balance %d", rent, got)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType() != EventTypeInitialized {
		t.Fatalf("expected initialized event, got %+v", f.emitter.events)
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	other := testIdentity(0x09)
	if _, err := f.mgr.Update(func(tx *state.Tx) error { return bank.Credit(tx, other, adminNativeBal) }); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := f.run(func(e *Engine) error {
		_, err := e.Initialize(f.initAccounts(other), InitializeArgs{Treasury: other, AcceptedStableAsset: other})
		return err
	})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	cfg := f.config()
	if cfg.Admin != f.admin || cfg.Treasury != f.treasury || cfg.AcceptedStableAsset != f.mint {
		t.Fatalf("config altered by second initialize: %+v", cfg)
	}
	if got := f.lamports(other); got != adminNativeBal {
		t.Fatalf("second caller charged: %d", got)
	}
}

func TestInitializeValidatesAccounts(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		accts InitializeAccounts
	}{
		{"unsigned admin", InitializeAccounts{Admin: meta(f.admin, false, true), Config: meta(ConfigAddress(DefaultProgramID), false, true)}},
		{"wrong config address", InitializeAccounts{Admin: meta(f.admin, true, true), Config: meta(testIdentity(0x77), false, true)}},
		{"readonly config", InitializeAccounts{Admin: meta(f.admin, true, true), Config: meta(ConfigAddress(DefaultProgramID), false, false)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.run(func(e *Engine) error {
				_, err := e.Initialize(tc.accts, InitializeArgs{Treasury: f.treasury, AcceptedStableAsset: f.mint})
				return err
			})
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestInitializeRequiresFunds(t *testing.T) {
	f := newFixture(t)
	poor := testIdentity(0x0a)
	err := f.run(func(e *Engine) error {
		_, err := e.Initialize(f.initAccounts(poor), InitializeArgs{Treasury: f.treasury, AcceptedStableAsset: f.mint})
		return err
	})
	if !errors.Is(err, ErrTransferFailure) {
		t.Fatalf("expected ErrTransferFailure, got %v", err)
	}
}

func TestPurchaseStableMovesTokensAndRecords(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	var got *Purchase
	err := f.run(func(e *Engine) error {
		var err error
		got, err = e.PurchaseStable(f.stableAccounts(), PurchaseStableArgs{StableAmount: 250, AllocationAmount: 1_000})
		return err
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if got.Timestamp != testNow {
		t.Fatalf("expected ledger timestamp, got %d", got.Timestamp)
	}
	if b := f.tokenBalance(f.buyerATA); b != buyerStable-250 {
		t.Fatalf("buyer balance %d", b)
	}
	if b := f.tokenBalance(f.tresATA); b != 250 {
		t.Fatalf("treasury balance %d", b)
	}
	purchases := f.purchases()
	if len(purchases) != 1 {
		t.Fatalf("expected one purchase record, got %d", len(purchases))
	}
	p := purchases[0]
	if p.Buyer != f.buyer || p.StableAmount != 250 || p.NativeAmount != 0 || p.AllocationAmount != 1_000 || p.Timestamp != testNow {
		t.Fatalf("unexpected record: %+v", p)
	}
	buyerLog, err := f.mgr.ReadSubjectLog(f.buyer, 0, 10)
	if err != nil {
		t.Fatalf("buyer log: %v", err)
	}
	if len(buyerLog) != 1 || buyerLog[0].Kind != LogKindPurchase {
		t.Fatalf("unexpected buyer log: %+v", buyerLog)
	}
}

func TestPurchaseNativeMovesLamportsAndRecords(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	before := f.lamports(f.buyer)
	err := f.run(func(e *Engine) error {
		_, err := e.PurchaseNative(f.nativeAccounts(), PurchaseNativeArgs{NativeAmount: 1_000_000, AllocationAmount: 42})
		return err
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if after := f.lamports(f.buyer); before-after < 1_000_000 {
		t.Fatalf("buyer balance decreased by %d", before-after)
	}
	if got := f.lamports(f.treasury); got != 1_000_000 {
		t.Fatalf("treasury lamports %d", got)
	}
	purchases := f.purchases()
	if len(purchases) != 1 {
		t.Fatalf("expected one record, got %d", len(purchases))
	}
	if p := purchases[0]; p.NativeAmount != 1_000_000 || p.StableAmount != 0 || p.AllocationAmount != 42 {
		t.Fatalf("unexpected record: %+v", p)
	}
}

func TestPurchaseZeroAmountRejected(t *testing.T) {
	f := newFixture(t)
	f.initialize()
	before := f.config()

	cases := []struct {
		name string
		run  func(e *Engine) error
	}{
		{"stable amount", func(e *Engine) error {
			_, err := e.PurchaseStable(f.stableAccounts(), PurchaseStableArgs{StableAmount: 0, AllocationAmount: 1})
			return err
		}},
		{"stable allocation", func(e *Engine) error {
			_, err := e.PurchaseStable(f.stableAccounts(), PurchaseStableArgs{StableAmount: 1, AllocationAmount: 0})
			return err
		}},
		{"native amount", func(e *Engine) error {
			_, err := e.PurchaseNative(f.nativeAccounts(), PurchaseNativeArgs{NativeAmount: 0, AllocationAmount: 1})
			return err
		}},
		{"native allocation", func(e *Engine) error {
			_, err := e.PurchaseNative(f.nativeAccounts(), PurchaseNativeArgs{NativeAmount: 1, AllocationAmount: 0})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.run(tc.run); !errors.Is(err, ErrZeroAmount) {
				t.Fatalf("expected ErrZeroAmount, got %v", err)
			}
		})
	}
	if len(f.purchases()) != 0 {
		t.Fatalf("zero-amount purchase wrote a record")
	}
	if after := f.config(); *after != *before {
		t.Fatalf("config changed: %+v", after)
	}
	if b := f.tokenBalance(f.buyerATA); b != buyerStable {
		t.Fatalf("buyer tokens moved: %d", b)
	}
}

func TestPauseGatesPurchases(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	paused := true
	if err := f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(f.updateAccounts(f.admin), UpdateConfigArgs{Paused: &paused})
		return err
	}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	err := f.run(func(e *Engine) error {
		_, err := e.PurchaseStable(f.stableAccounts(), PurchaseStableArgs{StableAmount: 1, AllocationAmount: 1})
		return err
	})
	if !errors.Is(err, ErrSalePaused) {
		t.Fatalf("expected ErrSalePaused, got %v", err)
	}
	err = f.run(func(e *Engine) error {
		_, err := e.PurchaseNative(f.nativeAccounts(), PurchaseNativeArgs{NativeAmount: 1, AllocationAmount: 1})
		return err
	})
	if !errors.Is(err, ErrSalePaused) {
		t.Fatalf("expected ErrSalePaused, got %v", err)
	}

	resumed := false
	if err := f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(f.updateAccounts(f.admin), UpdateConfigArgs{Paused: &resumed})
		return err
	}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := f.run(func(e *Engine) error {
		_, err := e.PurchaseNative(f.nativeAccounts(), PurchaseNativeArgs{NativeAmount: 1, AllocationAmount: 1})
		return err
	}); err != nil {
		t.Fatalf("purchase after resume: %v", err)
	}
}

func TestUpdateConfigPartialFields(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	paused := true
	if err := f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(f.updateAccounts(f.admin), UpdateConfigArgs{Paused: &paused})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg := f.config()
	if !cfg.Paused || cfg.Treasury != f.treasury || cfg.AcceptedStableAsset != f.mint || cfg.Admin != f.admin {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	newTreasury := testIdentity(0x33)
	newMint := testIdentity(0x34)
	if err := f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(f.updateAccounts(f.admin), UpdateConfigArgs{Treasury: &newTreasury, AcceptedStableAsset: &newMint})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg = f.config()
	if !cfg.Paused || cfg.Treasury != newTreasury || cfg.AcceptedStableAsset != newMint || cfg.Admin != f.admin {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigRecordsStayOutOfAdminHistory(t *testing.T) {
	f := newFixture(t)
	f.initialize()
	paused := true
	if err := f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(f.updateAccounts(f.admin), UpdateConfigArgs{Paused: &paused})
		return err
	}); err != nil {
		t.Fatalf("update config: %v", err)
	}

	all, err := f.mgr.ReadLog(0, 10)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(all) != 2 || all[0].Kind != LogKindInitialized || all[1].Kind != LogKindConfigUpdated {
		t.Fatalf("unexpected global log: %+v", all)
	}
	adminLog, err := f.mgr.ReadSubjectLog(f.admin, 0, 10)
	if err != nil {
		t.Fatalf("admin log: %v", err)
	}
	if len(adminLog) != 0 {
		t.Fatalf("config records leaked into admin history: %+v", adminLog)
	}
}

func TestUpdateConfigRejectsNonAdmin(t *testing.T) {
	f := newFixture(t)
	f.initialize()
	before := f.config()

	paused := true
	err := f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(f.updateAccounts(f.buyer), UpdateConfigArgs{Paused: &paused, Treasury: &f.buyer})
		return err
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	unsigned := f.updateAccounts(f.admin)
	unsigned.Admin.Signer = false
	err = f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(unsigned, UpdateConfigArgs{Paused: &paused})
		return err
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unsigned admin, got %v", err)
	}
	if after := f.config(); *after != *before {
		t.Fatalf("config changed: %+v", after)
	}
}

func TestUpdateConfigBeforeInitialize(t *testing.T) {
	f := newFixture(t)
	paused := true
	err := f.run(func(e *Engine) error {
		_, err := e.UpdateConfig(f.updateAccounts(f.admin), UpdateConfigArgs{Paused: &paused})
		return err
	})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestAdminNeverChanges(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	paused := false
	treasury := testIdentity(0x44)
	steps := []func(e *Engine) error{
		func(e *Engine) error {
			_, err := e.UpdateConfig(f.updateAccounts(f.admin), UpdateConfigArgs{Paused: &paused, Treasury: &treasury})
			return err
		},
		func(e *Engine) error {
			_, err := e.PurchaseStable(f.stableAccounts(), PurchaseStableArgs{StableAmount: 1, AllocationAmount: 1})
			return err
		},
		func(e *Engine) error {
			_, err := e.Initialize(f.initAccounts(f.buyer), InitializeArgs{})
			return err
		},
		func(e *Engine) error {
			_, err := e.UpdateConfig(f.updateAccounts(f.buyer), UpdateConfigArgs{Paused: &paused})
			return err
		},
	}
	for _, step := range steps {
		_ = f.run(step)
		if cfg := f.config(); cfg.Admin != f.admin {
			t.Fatalf("admin changed to %s", cfg.Admin)
		}
	}
}

func TestPurchaseStableValidation(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	otherMint := testIdentity(0x60)
	foreignATA := crypto.DeriveTokenAccount(f.buyer, otherMint)
	strangerATA := crypto.DeriveTokenAccount(testIdentity(0x61), f.mint)
	if _, err := f.mgr.Update(func(tx *state.Tx) error {
		if err := bank.InitializeMint(tx, otherMint, testIdentity(0x51), 6); err != nil {
			return err
		}
		if err := bank.InitializeTokenAccount(tx, foreignATA, otherMint, f.buyer); err != nil {
			return err
		}
		return bank.InitializeTokenAccount(tx, strangerATA, f.mint, testIdentity(0x61))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*PurchaseStableAccounts)
		want   error
	}{
		{"unsigned buyer", func(a *PurchaseStableAccounts) { a.Buyer.Signer = false }, ErrUnauthorized},
		{"wrong config", func(a *PurchaseStableAccounts) { a.Config.Key = testIdentity(0x70) }, ErrUnauthorized},
		{"wrong mint", func(a *PurchaseStableAccounts) { a.StableMint.Key = otherMint }, ErrAssetMismatch},
		{"buyer account of other mint", func(a *PurchaseStableAccounts) { a.BuyerToken.Key = foreignATA }, ErrAssetMismatch},
		{"buyer account owned by stranger", func(a *PurchaseStableAccounts) { a.BuyerToken.Key = strangerATA }, ErrUnauthorized},
		{"treasury account owned by stranger", func(a *PurchaseStableAccounts) { a.TreasuryToken.Key = strangerATA }, ErrUnauthorized},
		{"treasury account missing", func(a *PurchaseStableAccounts) { a.TreasuryToken.Key = testIdentity(0x71) }, ErrUnauthorized},
		{"readonly buyer account", func(a *PurchaseStableAccounts) { a.BuyerToken.Writable = false }, ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accts := f.stableAccounts()
			tc.mutate(&accts)
			err := f.run(func(e *Engine) error {
				_, err := e.PurchaseStable(accts, PurchaseStableArgs{StableAmount: 10, AllocationAmount: 10})
				return err
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if len(f.purchases()) != 0 {
		t.Fatalf("rejected purchase wrote a record")
	}
	if b := f.tokenBalance(f.buyerATA); b != buyerStable {
		t.Fatalf("buyer tokens moved: %d", b)
	}
}

func TestPurchaseStableTransferFailureIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	err := f.run(func(e *Engine) error {
		_, err := e.PurchaseStable(f.stableAccounts(), PurchaseStableArgs{StableAmount: buyerStable + 1, AllocationAmount: 1})
		return err
	})
	if !errors.Is(err, ErrTransferFailure) || !errors.Is(err, bank.ErrInsufficientFunds) {
		t.Fatalf("expected transfer failure wrapping insufficient funds, got %v", err)
	}

	if _, err := f.mgr.Update(func(tx *state.Tx) error { return bank.SetFrozen(tx, f.tresATA, true) }); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	err = f.run(func(e *Engine) error {
		_, err := e.PurchaseStable(f.stableAccounts(), PurchaseStableArgs{StableAmount: 1, AllocationAmount: 1})
		return err
	})
	if !errors.Is(err, ErrTransferFailure) || !errors.Is(err, bank.ErrAccountFrozen) {
		t.Fatalf("expected transfer failure wrapping frozen, got %v", err)
	}
	if len(f.purchases()) != 0 {
		t.Fatalf("failed transfer wrote a record")
	}
	if b := f.tokenBalance(f.buyerATA); b != buyerStable {
		t.Fatalf("buyer tokens moved: %d", b)
	}
}

func TestPurchaseNativeValidation(t *testing.T) {
	f := newFixture(t)
	f.initialize()

	cases := []struct {
		name   string
		mutate func(*PurchaseNativeAccounts)
		amount uint64
		want   error
	}{
		{"unsigned buyer", func(a *PurchaseNativeAccounts) { a.Buyer.Signer = false }, 1, ErrUnauthorized},
		{"wrong treasury", func(a *PurchaseNativeAccounts) { a.Treasury.Key = testIdentity(0x72) }, 1, ErrUnauthorized},
		{"readonly treasury", func(a *PurchaseNativeAccounts) { a.Treasury.Writable = false }, 1, ErrUnauthorized},
		{"insufficient balance", func(*PurchaseNativeAccounts) {}, buyerNative + 1, ErrTransferFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accts := f.nativeAccounts()
			tc.mutate(&accts)
			err := f.run(func(e *Engine) error {
				_, err := e.PurchaseNative(accts, PurchaseNativeArgs{NativeAmount: tc.amount, AllocationAmount: 1})
				return err
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if got := f.lamports(f.buyer); got != buyerNative {
		t.Fatalf("buyer lamports changed: %d", got)
	}
	if len(f.purchases()) != 0 {
		t.Fatalf("rejected purchase wrote a record")
	}
}

func TestPurchaseBeforeInitialize(t *testing.T) {
	f := newFixture(t)
	err := f.run(func(e *Engine) error {
		_, err := e.PurchaseNative(f.nativeAccounts(), PurchaseNativeArgs{NativeAmount: 1, AllocationAmount: 1})
		return err
	})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
