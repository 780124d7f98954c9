package rpc

import (
	"encoding/hex"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/bank"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    uint32 `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ConfigView is the presale configuration as served over HTTP.
type ConfigView struct {
	ProgramID           crypto.Identity `json:"programId"`
	ConfigAddress       crypto.Identity `json:"configAddress"`
	Admin               crypto.Identity `json:"admin"`
	Treasury            crypto.Identity `json:"treasury"`
	AcceptedStableAsset crypto.Identity `json:"acceptedStableAsset"`
	Paused              bool            `json:"paused"`
}

// AddressesView lists the well-known identities a client needs to build
// requests.
type AddressesView struct {
	ProgramID              crypto.Identity `json:"programId"`
	ConfigAddress          crypto.Identity `json:"configAddress"`
	SystemProgram          crypto.Identity `json:"systemProgram"`
	TokenProgram           crypto.Identity `json:"tokenProgram"`
	AssociatedTokenProgram crypto.Identity `json:"associatedTokenProgram"`
}

const (
	AccountKindSystem  = "system"
	AccountKindMint    = "mint"
	AccountKindToken   = "token"
	AccountKindConfig  = "presale-config"
	AccountKindUnknown = "unknown"
)

// AccountView describes a ledger account with its data decoded when the
// owning program is known.
type AccountView struct {
	ID       crypto.Identity    `json:"id"`
	Exists   bool               `json:"exists"`
	Lamports uint64             `json:"lamports"`
	Owner    crypto.Identity    `json:"owner"`
	Kind     string             `json:"kind,omitempty"`
	DataLen  int                `json:"dataLen"`
	Mint     *bank.Mint         `json:"mint,omitempty"`
	Token    *bank.TokenAccount `json:"token,omitempty"`
	Config   *presale.Config    `json:"config,omitempty"`
}

// DeriveView is the associated token account of owner for mint.
type DeriveView struct {
	Owner   crypto.Identity `json:"owner"`
	Mint    crypto.Identity `json:"mint"`
	Address crypto.Identity `json:"address"`
}

// PurchaseView is the decoded payload of a purchase record.
type PurchaseView struct {
	Buyer            crypto.Identity `json:"buyer"`
	Currency         string          `json:"currency"`
	StableAmount     uint64          `json:"stableAmount"`
	NativeAmount     uint64          `json:"nativeAmount"`
	AllocationAmount uint64          `json:"allocationAmount"`
	Timestamp        int64           `json:"timestamp"`
}

// LogEntry is one event log record with its payload decoded.
type LogEntry struct {
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	RequestID string          `json:"requestId"`
	Purchase  *PurchaseView   `json:"purchase,omitempty"`
	Config    *presale.Config `json:"config,omitempty"`
}

// LogPage is a page of the event log. Next is the cursor to pass as after for
// the following page.
type LogPage struct {
	Records []LogEntry `json:"records"`
	Next    uint64     `json:"next"`
	Head    uint64     `json:"head"`
}

// NewLogEntry decodes rec into its HTTP form.
func NewLogEntry(rec types.LogRecord) LogEntry {
	entry := LogEntry{
		Seq:       rec.Seq,
		Kind:      rec.Kind,
		Timestamp: rec.Timestamp,
		RequestID: hex.EncodeToString(rec.RequestID[:]),
	}
	switch rec.Kind {
	case presale.LogKindPurchase:
		if p, err := presale.DecodePurchase(rec.Payload); err == nil {
			entry.Purchase = &PurchaseView{
				Buyer:            p.Buyer,
				Currency:         p.Currency(),
				StableAmount:     p.StableAmount,
				NativeAmount:     p.NativeAmount,
				AllocationAmount: p.AllocationAmount,
				Timestamp:        p.Timestamp,
			}
		}
	case presale.LogKindInitialized, presale.LogKindConfigUpdated:
		if cfg, err := presale.DecodeConfig(rec.Payload); err == nil {
			entry.Config = cfg
		}
	}
	return entry
}

func newAccountView(id crypto.Identity, acc *types.Account, programID crypto.Identity) AccountView {
	view := AccountView{ID: id}
	if acc == nil {
		return view
	}
	view.Exists = true
	view.Lamports = acc.Lamports
	view.Owner = acc.Owner
	view.DataLen = len(acc.Data)
	switch acc.Owner {
	case crypto.SystemProgramID:
		view.Kind = AccountKindSystem
	case crypto.TokenProgramID:
		if mint, err := bank.DecodeMint(acc.Data); err == nil {
			view.Kind = AccountKindMint
			view.Mint = mint
		} else if ta, err := bank.DecodeTokenAccount(acc.Data); err == nil {
			view.Kind = AccountKindToken
			view.Token = ta
		} else {
			view.Kind = AccountKindUnknown
		}
	case programID:
		if cfg, err := presale.DecodeConfig(acc.Data); err == nil {
			view.Kind = AccountKindConfig
			view.Config = cfg
		} else {
			view.Kind = AccountKindUnknown
		}
	default:
		view.Kind = AccountKindUnknown
	}
	return view
}
