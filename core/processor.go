package core

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/events"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/bank"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
	"github.com/S3MTFoundationv0/s3mt.xyz/observability"
)

var (
	ErrMissingSignature    = fmt.Errorf("core: missing signature: %w", presale.ErrUnauthorized)
	ErrBadSignature        = fmt.Errorf("core: invalid signature: %w", presale.ErrUnauthorized)
	ErrUnexpectedSignature = fmt.Errorf("core: signature from non-signer account: %w", presale.ErrUnauthorized)
	ErrDuplicateRequest    = errors.New("core: duplicate request")
	ErrUnknownProgram      = fmt.Errorf("core: unknown program: %w", presale.ErrInvalidArgument)
	ErrUnknownInstruction  = fmt.Errorf("core: unknown instruction: %w", presale.ErrInvalidArgument)
	ErrFeePayment          = fmt.Errorf("core: fee payment failed: %w", presale.ErrTransferFailure)

	errNilRequest = fmt.Errorf("core: nil request: %w", presale.ErrInvalidArgument)
)

// Options configure a Processor.
type Options struct {
	ProgramID crypto.Identity
	// FeeLamports is charged to the first signer of every accepted request.
	FeeLamports uint64
	// FeeCollector receives fees; the zero identity burns them.
	FeeCollector crypto.Identity
	Broker       *events.Broker
	Logger       *slog.Logger
	Now          func() time.Time
}

// Receipt summarises a committed request.
type Receipt struct {
	RequestID   string        `json:"requestId"`
	Instruction string        `json:"instruction"`
	Seq         []uint64      `json:"seq"`
	Events      []types.Event `json:"events"`
	Fee         uint64        `json:"fee"`
}

// Processor authenticates requests and executes them atomically against the
// state manager.
type Processor struct {
	state        *state.Manager
	engine       *presale.Engine
	broker       *events.Broker
	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      *observability.PresaleMetrics
	feeLamports  uint64
	feeCollector crypto.Identity
	now          func() time.Time
}

// NewProcessor wires a processor over mgr.
func NewProcessor(mgr *state.Manager, opts Options) (*Processor, error) {
	if mgr == nil {
		return nil, errors.New("core: state manager required")
	}
	programID := opts.ProgramID
	if programID.IsZero() {
		programID = presale.DefaultProgramID
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := presale.NewEngine(programID)
	engine.SetNowFunc(func() int64 { return now().Unix() })
	return &Processor{
		state:        mgr,
		engine:       engine,
		broker:       opts.Broker,
		logger:       logger.With(slog.String("component", "processor")),
		tracer:       otel.Tracer("github.com/S3MTFoundationv0/s3mt.xyz/core"),
		metrics:      observability.Presale(),
		feeLamports:  opts.FeeLamports,
		feeCollector: opts.FeeCollector,
		now:          now,
	}, nil
}

// ProgramID returns the presale program identity served by the processor.
func (p *Processor) ProgramID() crypto.Identity { return p.engine.ProgramID() }

// ConfigAddress returns the derived presale configuration address.
func (p *Processor) ConfigAddress() crypto.Identity { return p.engine.ConfigAddress() }

// State exposes the underlying state manager for read paths.
func (p *Processor) State() *state.Manager { return p.state }

type collector struct {
	events []types.Event
}

func (c *collector) Emit(evt events.Event) {
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		if e := typed.Event(); e != nil {
			c.events = append(c.events, *e)
		}
	}
}

// Submit authenticates req, executes it in a single atomic update and
// publishes the appended log records to live subscribers.
func (p *Processor) Submit(ctx context.Context, req *types.Request) (*Receipt, error) {
	if req == nil {
		return nil, errNilRequest
	}
	instruction := req.Message.Instruction
	ctx, span := p.tracer.Start(ctx, "presale.Submit", trace.WithAttributes(
		attribute.String("presale.instruction", instruction),
	))
	defer span.End()
	start := p.now()

	receipt, records, err := p.execute(ctx, req)
	elapsed := p.now().Sub(start)
	if err != nil {
		outcome := "error"
		if _, name, ok := presale.Classify(err); ok {
			outcome = name
		} else if errors.Is(err, ErrDuplicateRequest) {
			outcome = "duplicate"
		}
		p.metrics.ObserveRequest(instruction, outcome, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		p.logger.Warn("request rejected",
			slog.String("instruction", instruction),
			slog.String("outcome", outcome),
			slog.Any("error", err))
		return nil, err
	}

	p.metrics.ObserveRequest(instruction, "ok", elapsed)
	for _, rec := range records {
		if rec.Kind != presale.LogKindPurchase {
			continue
		}
		if purchase, decodeErr := presale.DecodePurchase(rec.Payload); decodeErr == nil {
			amount := purchase.StableAmount + purchase.NativeAmount
			p.metrics.RecordPurchase(purchase.Currency(), amount, purchase.AllocationAmount)
		}
	}
	p.broker.Publish(records...)
	span.SetAttributes(attribute.String("presale.request_id", receipt.RequestID))
	p.logger.Info("request committed",
		slog.String("instruction", instruction),
		slog.String("request_id", receipt.RequestID),
		slog.Int("records", len(records)))
	return receipt, nil
}

func (p *Processor) execute(_ context.Context, req *types.Request) (*Receipt, []types.LogRecord, error) {
	msg := &req.Message
	if msg.Program != p.engine.ProgramID() {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProgram, msg.Program)
	}
	digest, err := msg.Digest()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", presale.ErrInvalidArgument, err)
	}
	if err := verifySignatures(req, digest); err != nil {
		return nil, nil, err
	}

	sink := &collector{}
	var fee uint64
	records, err := p.state.Update(func(tx *state.Tx) error {
		seen, err := tx.HasRequest(digest)
		if err != nil {
			return err
		}
		if seen {
			return ErrDuplicateRequest
		}
		tx.SetRequestID(digest)
		charged, err := p.chargeFee(tx, msg)
		if err != nil {
			return err
		}
		fee = charged

		p.engine.SetState(tx)
		p.engine.SetEmitter(sink)
		defer func() {
			p.engine.SetState(nil)
			p.engine.SetEmitter(nil)
		}()
		if err := p.dispatch(msg); err != nil {
			return err
		}
		return tx.MarkRequest(digest, p.now().Unix())
	})
	if err != nil {
		return nil, nil, err
	}

	receipt := &Receipt{
		RequestID:   hex.EncodeToString(digest[:]),
		Instruction: msg.Instruction,
		Seq:         make([]uint64, 0, len(records)),
		Events:      sink.events,
		Fee:         fee,
	}
	if receipt.Events == nil {
		receipt.Events = []types.Event{}
	}
	for _, rec := range records {
		receipt.Seq = append(receipt.Seq, rec.Seq)
	}
	return receipt, records, nil
}

func (p *Processor) chargeFee(tx *state.Tx, msg *types.Message) (uint64, error) {
	if p.feeLamports == 0 {
		return 0, nil
	}
	payer, ok := msg.FeePayer()
	if !ok {
		return 0, ErrMissingSignature
	}
	var err error
	if p.feeCollector.IsZero() {
		err = bank.Debit(tx, payer, p.feeLamports)
	} else {
		err = bank.TransferNative(tx, payer, p.feeCollector, p.feeLamports)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFeePayment, err)
	}
	return p.feeLamports, nil
}

func (p *Processor) dispatch(msg *types.Message) error {
	switch msg.Instruction {
	case presale.InstructionInitialize:
		accts, err := presale.ParseInitializeAccounts(msg.Accounts)
		if err != nil {
			return err
		}
		var args presale.InitializeArgs
		if err := decodeArgs(msg.Data, &args); err != nil {
			return err
		}
		_, err = p.engine.Initialize(accts, args)
		return err
	case presale.InstructionPurchaseStable:
		accts, err := presale.ParsePurchaseStableAccounts(msg.Accounts)
		if err != nil {
			return err
		}
		var args presale.PurchaseStableArgs
		if err := decodeArgs(msg.Data, &args); err != nil {
			return err
		}
		_, err = p.engine.PurchaseStable(accts, args)
		return err
	case presale.InstructionPurchaseNative:
		accts, err := presale.ParsePurchaseNativeAccounts(msg.Accounts)
		if err != nil {
			return err
		}
		var args presale.PurchaseNativeArgs
		if err := decodeArgs(msg.Data, &args); err != nil {
			return err
		}
		_, err = p.engine.PurchaseNative(accts, args)
		return err
	case presale.InstructionUpdateConfig:
		accts, err := presale.ParseUpdateConfigAccounts(msg.Accounts)
		if err != nil {
			return err
		}
		var args presale.UpdateConfigArgs
		if err := decodeArgs(msg.Data, &args); err != nil {
			return err
		}
		_, err = p.engine.UpdateConfig(accts, args)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownInstruction, msg.Instruction)
}

// decodeArgs parses instruction data as a single JSON object, rejecting
// unknown fields and trailing data.
func decodeArgs(data []byte, dst any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: instruction data required", presale.ErrInvalidArgument)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", presale.ErrInvalidArgument, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing instruction data", presale.ErrInvalidArgument)
	}
	return nil
}

func verifySignatures(req *types.Request, digest [32]byte) error {
	signers := make(map[crypto.Identity]struct{})
	for _, meta := range req.Message.Accounts {
		if meta.Signer {
			signers[meta.Key] = struct{}{}
		}
	}
	provided := make(map[crypto.Identity][]byte, len(req.Signatures))
	for _, sig := range req.Signatures {
		if _, ok := signers[sig.Signer]; !ok {
			return fmt.Errorf("%w: %s", ErrUnexpectedSignature, sig.Signer)
		}
		if _, dup := provided[sig.Signer]; dup {
			return fmt.Errorf("%w: duplicate signature from %s", ErrBadSignature, sig.Signer)
		}
		provided[sig.Signer] = sig.Sig
	}
	for signer := range signers {
		sig, ok := provided[signer]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		if !crypto.Verify(signer, digest[:], sig) {
			return fmt.Errorf("%w: %s", ErrBadSignature, signer)
		}
	}
	return nil
}
