package presale

import (
	"errors"
	"fmt"
	"time"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/events"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/bank"
)

const (
	InstructionInitialize     = "initialize"
	InstructionPurchaseStable = "purchase_stable"
	InstructionPurchaseNative = "purchase_native"
	InstructionUpdateConfig   = "update_config"
)

type engineState interface {
	bank.Store
	AppendLog(kind string, timestamp int64, payload []byte, subjects ...crypto.Identity) (uint64, error)
}

// InitializeArgs carries the initialize instruction data.
type InitializeArgs struct {
	Treasury            crypto.Identity `json:"treasury"`
	AcceptedStableAsset crypto.Identity `json:"acceptedStableAsset"`
}

// PurchaseStableArgs carries the purchase_stable instruction data.
type PurchaseStableArgs struct {
	StableAmount     uint64 `json:"stableAmount"`
	AllocationAmount uint64 `json:"allocationAmount"`
}

// PurchaseNativeArgs carries the purchase_native instruction data.
type PurchaseNativeArgs struct {
	NativeAmount     uint64 `json:"nativeAmount"`
	AllocationAmount uint64 `json:"allocationAmount"`
}

// UpdateConfigArgs carries the update_config instruction data. Nil fields are
// left unchanged.
type UpdateConfigArgs struct {
	Treasury            *crypto.Identity `json:"treasury,omitempty"`
	Paused              *bool            `json:"paused,omitempty"`
	AcceptedStableAsset *crypto.Identity `json:"acceptedStableAsset,omitempty"`
}

// Engine implements the presale instructions on top of the ledger primitives.
// An engine is bound to one request transaction at a time through SetState and
// must only be driven under the state manager's write lock.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	programID crypto.Identity
	config    crypto.Identity
	nowFn     func() int64
}

// NewEngine creates a presale engine for programID with a no-op emitter.
func NewEngine(programID crypto.Identity) *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		programID: programID,
		config:    ConfigAddress(programID),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used for purchase timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// ProgramID returns the identity the engine owns accounts under.
func (e *Engine) ProgramID() crypto.Identity { return e.programID }

// ConfigAddress returns the derived configuration address.
func (e *Engine) ConfigAddress() crypto.Identity { return e.config }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// LoadConfig reads the configuration singleton of programID from store.
func LoadConfig(store bank.Store, programID crypto.Identity) (*Config, error) {
	addr := ConfigAddress(programID)
	acc, err := store.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrNotInitialized
	}
	if acc.Owner != programID {
		return nil, fmt.Errorf("%w: config owned by %s", ErrUnauthorized, acc.Owner)
	}
	cfg, err := DecodeConfig(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return cfg, nil
}

// loadConfig validates the supplied config account and returns its contents.
func (e *Engine) loadConfig(meta types.AccountMeta) (*Config, error) {
	if meta.Key != e.config {
		return nil, fmt.Errorf("%w: config account %s is not %s", ErrUnauthorized, meta.Key, e.config)
	}
	return LoadConfig(e.state, e.programID)
}

func (e *Engine) storeConfig(cfg *Config) error {
	acc, err := e.state.GetAccount(e.config)
	if err != nil {
		return err
	}
	if acc == nil {
		return ErrNotInitialized
	}
	acc = acc.Clone()
	acc.Data = cfg.Encode()
	return e.state.PutAccount(e.config, acc)
}

// Initialize creates the configuration singleton with the caller as admin.
func (e *Engine) Initialize(accts InitializeAccounts, args InitializeArgs) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := requireSigner(accts.Admin, "admin"); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.Admin, "admin"); err != nil {
		return nil, err
	}
	if accts.Config.Key != e.config {
		return nil, fmt.Errorf("%w: config account %s is not %s", ErrUnauthorized, accts.Config.Key, e.config)
	}
	if err := requireWritable(accts.Config, "config"); err != nil {
		return nil, err
	}
	if _, err := bank.CreateAccount(e.state, accts.Admin.Key, e.config, ConfigAccountSize, e.programID); err != nil {
		if errors.Is(err, bank.ErrAccountExists) {
			return nil, ErrAlreadyInitialized
		}
		return nil, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}
	cfg := &Config{
		Admin:               accts.Admin.Key,
		Treasury:            args.Treasury,
		AcceptedStableAsset: args.AcceptedStableAsset,
	}
	if err := e.storeConfig(cfg); err != nil {
		return nil, err
	}
	ts := e.now()
	if _, err := e.state.AppendLog(LogKindInitialized, ts, cfg.Encode()); err != nil {
		return nil, err
	}
	e.emit(ConfigEvent{Kind: EventTypeInitialized, Config: *cfg, Timestamp: ts})
	return cfg, nil
}

// PurchaseStable moves stable tokens from the buyer's associated account to the
// treasury's and records the purchase.
func (e *Engine) PurchaseStable(accts PurchaseStableAccounts, args PurchaseStableArgs) (*Purchase, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := requireSigner(accts.Buyer, "buyer"); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if accts.StableMint.Key != cfg.AcceptedStableAsset {
		return nil, fmt.Errorf("%w: mint %s, accepted %s", ErrAssetMismatch, accts.StableMint.Key, cfg.AcceptedStableAsset)
	}
	if _, err := bank.LoadMint(e.state, accts.StableMint.Key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssetMismatch, err)
	}
	if err := validateTokenAccount(e.state, accts.BuyerToken, cfg.AcceptedStableAsset, accts.Buyer.Key, "buyer token account"); err != nil {
		return nil, err
	}
	if err := validateTokenAccount(e.state, accts.TreasuryToken, cfg.AcceptedStableAsset, cfg.Treasury, "treasury token account"); err != nil {
		return nil, err
	}
	if err := checkPurchase(cfg, args.StableAmount, args.AllocationAmount); err != nil {
		return nil, err
	}
	if err := bank.TransferToken(e.state, accts.BuyerToken.Key, accts.TreasuryToken.Key, accts.Buyer.Key, args.StableAmount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}
	return e.recordPurchase(&Purchase{
		Buyer:            accts.Buyer.Key,
		StableAmount:     args.StableAmount,
		AllocationAmount: args.AllocationAmount,
	})
}

// PurchaseNative moves native currency from the buyer to the treasury and
// records the purchase.
func (e *Engine) PurchaseNative(accts PurchaseNativeAccounts, args PurchaseNativeArgs) (*Purchase, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := requireSigner(accts.Buyer, "buyer"); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.Buyer, "buyer"); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if accts.Treasury.Key != cfg.Treasury {
		return nil, fmt.Errorf("%w: treasury %s, configured %s", ErrUnauthorized, accts.Treasury.Key, cfg.Treasury)
	}
	if err := requireWritable(accts.Treasury, "treasury"); err != nil {
		return nil, err
	}
	if err := checkPurchase(cfg, args.NativeAmount, args.AllocationAmount); err != nil {
		return nil, err
	}
	if err := bank.TransferNative(e.state, accts.Buyer.Key, accts.Treasury.Key, args.NativeAmount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}
	return e.recordPurchase(&Purchase{
		Buyer:            accts.Buyer.Key,
		NativeAmount:     args.NativeAmount,
		AllocationAmount: args.AllocationAmount,
	})
}

// UpdateConfig overwrites the supplied configuration fields. Only the stored
// admin may call it.
func (e *Engine) UpdateConfig(accts UpdateConfigAccounts, args UpdateConfigArgs) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := requireSigner(accts.Admin, "admin"); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if err := requireWritable(accts.Config, "config"); err != nil {
		return nil, err
	}
	if cfg.Admin != accts.Admin.Key {
		return nil, fmt.Errorf("%w: %s is not the admin", ErrUnauthorized, accts.Admin.Key)
	}
	if args.Treasury != nil {
		cfg.Treasury = *args.Treasury
	}
	if args.Paused != nil {
		cfg.Paused = *args.Paused
	}
	if args.AcceptedStableAsset != nil {
		cfg.AcceptedStableAsset = *args.AcceptedStableAsset
	}
	if err := e.storeConfig(cfg); err != nil {
		return nil, err
	}
	ts := e.now()
	if _, err := e.state.AppendLog(LogKindConfigUpdated, ts, cfg.Encode()); err != nil {
		return nil, err
	}
	e.emit(ConfigEvent{Kind: EventTypeConfigUpdated, Config: *cfg, Timestamp: ts})
	return cfg, nil
}

func checkPurchase(cfg *Config, payment, allocation uint64) error {
	if cfg.Paused {
		return ErrSalePaused
	}
	if payment == 0 || allocation == 0 {
		return ErrZeroAmount
	}
	return nil
}

func (e *Engine) recordPurchase(p *Purchase) (*Purchase, error) {
	p.Timestamp = e.now()
	if _, err := e.state.AppendLog(LogKindPurchase, p.Timestamp, p.Encode(), p.Buyer); err != nil {
		return nil, err
	}
	e.emit(PurchaseEvent{Purchase: *p})
	return p, nil
}
