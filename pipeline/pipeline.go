// Package pipeline runs one lending action end to end: portfolio read,
// projection, ticket, packet decode, build, preflight simulation, signing,
// submission and finality.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwdwow/mp-go/assets"
	"github.com/dwdwow/mp-go/chain"
	"github.com/dwdwow/mp-go/client"
	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/logging"
	"github.com/dwdwow/mp-go/portfolio"
	"github.com/dwdwow/mp-go/signing"
	"github.com/dwdwow/mp-go/types"
	"github.com/dwdwow/mp-go/utils"
)

// RiskService is the risk and ticket service
type RiskService interface {
	Portfolio(ctx context.Context, address string) (*types.Portfolio, error)
	RequestTicket(ctx context.Context, kind types.ActionKind, req types.TicketRequest) (types.Ticket, error)
	SimulateRisk(ctx context.Context, state types.PortfolioState) (*client.RiskPreview, error)
}

// PacketDecoder resolves a ticket packet into an entry function call
type PacketDecoder interface {
	Decode(ctx context.Context, kind types.ActionKind, packet, brokerName string) (types.CallDescriptor, error)
}

// TransactionBuilder turns a call into an unsigned transaction
type TransactionBuilder interface {
	Build(ctx context.Context, sender string, desc types.CallDescriptor) (types.UnsignedTransaction, error)
}

// ChainService simulates, submits and tracks transactions
type ChainService interface {
	Simulate(ctx context.Context, unsigned types.UnsignedTransaction, publicKey [32]byte) (types.SimulationResult, error)
	Submit(ctx context.Context, signed types.SignedTransaction) (types.SubmittedTransaction, error)
	WaitForTransaction(ctx context.Context, hash string) (types.FinalizedTransaction, error)
}

// Pipeline executes lending actions. It holds no per-run state and is safe
// for concurrent use; runs for the same account are serialized.
type Pipeline struct {
	cfg     Config
	risk    RiskService
	decoder PacketDecoder
	builder TransactionBuilder
	chain   ChainService
	locks   *accountLocks
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger. The default drops everything.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline from explicit configuration and services
func New(cfg Config, risk RiskService, decoder PacketDecoder, builder TransactionBuilder, chainSvc ChainService, opts ...Option) (*Pipeline, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if risk == nil || decoder == nil || builder == nil || chainSvc == nil {
		return nil, fmt.Errorf("risk, decoder, builder and chain services are required")
	}

	p := &Pipeline{
		cfg:     cfg,
		risk:    risk,
		decoder: decoder,
		builder: builder,
		chain:   chainSvc,
		locks:   newAccountLocks(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Result describes a run. It is returned on failure too, filled up to the
// step that failed.
type Result struct {
	RunID      string
	Kind       types.ActionKind
	Asset      assets.Asset
	RawAmount  string
	Current    types.PortfolioState
	Projected  types.PortfolioState
	Preview    *client.RiskPreview
	Ticket     types.Ticket
	Simulated  types.SimulatedTransaction
	Signed     types.SignedTransaction
	Submitted  types.SubmittedTransaction
	Finalized  types.FinalizedTransaction
	FinalState State
}

type run struct {
	p         *Pipeline
	res       *Result
	progress  ProgressFunc
	logger    *slog.Logger
	state     State
	stepStart time.Time
}

func (r *run) enter(state State) {
	now := time.Now()
	r.p.metrics.observeStep(r.state, now.Sub(r.stepStart))
	r.state, r.stepStart = state, now
	r.res.FinalState = state

	r.logger.Debug("state", "state", string(state))
	if r.progress != nil {
		r.progress(Progress{RunID: r.res.RunID, State: state, Label: state.Label()})
	}
}

// fail ends the run. Errors already in the taxonomy keep their kind,
// anything else becomes fallback.
func (r *run) fail(err error, fallback types.ErrorKind) (*Result, error) {
	var e *types.Error
	if !errors.As(err, &e) {
		e = &types.Error{Kind: fallback, Message: err.Error(), Err: err}
		if fallback == types.KindNetwork {
			e.Message = constants.NetworkErrorMessage
		}
	}
	if r.res.Submitted.Hash != "" && e.TxHash == "" {
		cp := *e
		cp.TxHash = r.res.Submitted.Hash
		e = &cp
	}

	failedIn := r.state
	r.p.metrics.observeStep(r.state, time.Since(r.stepStart))
	r.state = StateFailed
	r.res.FinalState = StateFailed
	r.p.metrics.observeRun(string(r.res.Kind), string(e.Kind))

	r.logger.Warn("action failed",
		"state", string(failedIn),
		"kind", string(e.Kind),
		"code", e.Code,
		"tx_hash", e.TxHash,
		"error", e.Error(),
	)
	if r.progress != nil {
		r.progress(Progress{RunID: r.res.RunID, State: StateFailed, Label: StateFailed.Label(), Err: e})
	}
	return r.res, e
}

// Execute runs one action to completion. progress may be nil.
func (p *Pipeline) Execute(ctx context.Context, req types.ActionRequest, progress ProgressFunc) (*Result, error) {
	r := &run{
		p: p,
		res: &Result{
			RunID:      uuid.NewString(),
			Kind:       req.Kind,
			FinalState: StateIdle,
		},
		progress:  progress,
		state:     StateIdle,
		stepStart: time.Now(),
	}
	r.logger = p.logger.With(
		"run_id", r.res.RunID,
		"action", string(req.Kind),
		"symbol", assets.Normalize(req.Symbol),
		logging.ShortHex("address", req.Account.Address),
	)

	// Everything checkable without I/O is checked before the first call
	in, err := validate(req)
	if err != nil {
		return r.fail(err, types.KindValidation)
	}
	r.res.Asset = in.asset
	r.res.RawAmount = in.rawAmount

	release, err := p.locks.acquire(ctx, in.address.String())
	if err != nil {
		return r.fail(fmt.Errorf("waiting for account lock: %w", err), types.KindUnknown)
	}
	defer release()
	p.metrics.trackInflight(1)
	defer p.metrics.trackInflight(-1)

	r.logger.Info("action started", "raw_amount", in.rawAmount, "broker", in.asset.BrokerName)

	// Fresh state for every run, never cached
	r.enter(StateFetchingPortfolio)
	current, err := p.risk.Portfolio(ctx, req.Account.Address)
	if err != nil {
		return r.fail(err, types.KindNetwork)
	}
	r.res.Current = current.PortfolioState.Clone()

	r.enter(StateProjectingState)
	instrument := assets.InstrumentID(req.Kind, in.asset.BrokerName)
	projected, err := portfolio.Project(r.res.Current, req.Kind, instrument, in.rawAmount)
	if err != nil {
		return r.fail(fmt.Errorf("project portfolio: %w", err), types.KindUnknown)
	}
	r.res.Projected = projected

	if p.cfg.PreviewRisk {
		if err := r.previewRisk(ctx, req.Kind); err != nil {
			return r.fail(err, types.KindNetwork)
		}
	}

	r.enter(StateRequestingTicket)
	ticket, err := p.risk.RequestTicket(ctx, req.Kind, types.TicketRequest{
		BrokerName:            in.asset.BrokerName,
		Amount:                in.rawAmount,
		Network:               constants.TicketNetwork,
		SignerPubkey:          req.Account.Address,
		CurrentPortfolioState: r.res.Current.Clone(),
	})
	if err != nil {
		return r.fail(err, types.KindNetwork)
	}
	r.res.Ticket = ticket

	r.enter(StateDecodingPacket)
	call, err := p.decoder.Decode(ctx, req.Kind, ticket.Packet, in.asset.BrokerName)
	if err != nil {
		return r.fail(fmt.Errorf("decode ticket: %w", err), types.KindUnknown)
	}

	r.enter(StateBuildingTransaction)
	unsigned, err := p.builder.Build(ctx, req.Account.Address, call)
	if err != nil {
		return r.fail(fmt.Errorf("build transaction: %w", err), types.KindUnknown)
	}
	if unsigned.Raw.ChainID != p.cfg.ChainID {
		return r.fail(fmt.Errorf("transaction built for chain %d, want %d", unsigned.Raw.ChainID, p.cfg.ChainID), types.KindUnknown)
	}

	r.enter(StateSimulating)
	result, err := p.chain.Simulate(ctx, unsigned, in.publicKey)
	if err != nil {
		return r.fail(err, types.KindNetwork)
	}
	r.res.Simulated.Result = result
	if simErr := chain.Classify(result); simErr != nil {
		r.logger.Info("simulation rejected action", "vm_status", result.VMStatus, "gas_used", result.GasUsed)
		return r.fail(simErr, types.KindSimulation)
	}
	digest, err := signing.TransactionDigest(unsigned.SigningMessage, unsigned.Raw.ChainID)
	if err != nil {
		return r.fail(fmt.Errorf("digest transaction: %w", err), types.KindUnknown)
	}
	sim := types.SimulatedTransaction{Unsigned: unsigned, Result: result, Digest: digest}
	r.res.Simulated = sim

	r.enter(StateAwaitingSignature)
	auth, err := r.sign(ctx, sim, req.Account)
	if err != nil {
		return r.fail(err, types.KindUnknown)
	}
	signed := signing.SignedTransaction(sim, auth)
	r.res.Signed = signed

	r.enter(StateSubmitting)
	submitted, err := p.chain.Submit(ctx, signed)
	if err != nil {
		return r.fail(err, types.KindSubmission)
	}
	r.res.Submitted = submitted

	r.enter(StateAwaitingFinality)
	finalized, err := p.chain.WaitForTransaction(ctx, submitted.Hash)
	if err != nil {
		return r.fail(err, types.KindSubmission)
	}
	r.res.Finalized = finalized
	if !finalized.Success {
		return r.fail(types.NewSubmissionError(finalized.VMStatus, submitted.Hash, nil), types.KindSubmission)
	}

	r.enter(StateSucceeded)
	p.metrics.observeRun(string(req.Kind), string(StateSucceeded))
	r.logger.Info("action succeeded", "tx_hash", finalized.Hash, "version", finalized.Version, "gas_used", finalized.GasUsed)
	return r.res, nil
}

func (r *run) previewRisk(ctx context.Context, kind types.ActionKind) error {
	preview, err := r.p.risk.SimulateRisk(ctx, r.res.Projected)
	if err != nil {
		if r.p.cfg.MinHealthRatio <= 0 {
			// The preview is informational unless the guard depends on it
			r.logger.Warn("risk preview unavailable", "error", err)
			return nil
		}
		return err
	}
	r.res.Preview = preview

	health := float64(preview.Evaluation.HealthRatio)
	reducesHealth := kind == types.ActionWithdraw || kind == types.ActionBorrow
	if floor := r.p.cfg.MinHealthRatio; floor > 0 && reducesHealth && health > 0 && health < floor {
		return types.NewValidationError("projected health ratio %.4f is below the minimum %.4f", health, floor)
	}
	return nil
}

func (r *run) sign(ctx context.Context, sim types.SimulatedTransaction, account types.Account) (types.Authenticator, error) {
	// The signed bytes must be the simulated bytes, both as carried and as
	// derived again from the raw transaction that will be submitted
	chainID := sim.Unsigned.Raw.ChainID
	if err := signing.VerifyDigest(sim.Unsigned.SigningMessage, chainID, sim.Digest); err != nil {
		return types.Authenticator{}, err
	}
	derived, err := chain.SigningMessage(sim.Unsigned.Raw)
	if err != nil {
		return types.Authenticator{}, fmt.Errorf("derive signing message: %w", err)
	}
	if err := signing.VerifyDigest(derived, chainID, sim.Digest); err != nil {
		return types.Authenticator{}, fmt.Errorf("signing message does not match the raw transaction: %w", err)
	}

	hashHex := utils.BytesToHex(sim.Unsigned.SigningMessage)
	start := time.Now()
	resp, err := signing.SignWithTimeout(ctx, account.Signer, hashHex, r.p.cfg.SigningTimeout)
	r.p.metrics.observeSigning(time.Since(start))
	if err != nil {
		return types.Authenticator{}, err
	}
	r.logger.Debug("signature received", logging.MaskField("signature", resp.SignatureHex))

	auth, err := signing.Assemble(account.PublicKey, resp.SignatureHex)
	if err != nil {
		return types.Authenticator{}, err
	}
	if err := signing.Verify(auth, sim.Unsigned.SigningMessage); err != nil {
		return types.Authenticator{}, err
	}
	return auth, nil
}

type validated struct {
	asset     assets.Asset
	rawAmount string
	address   types.AccountAddress
	publicKey [32]byte
}

func validate(req types.ActionRequest) (validated, error) {
	var v validated

	if _, ok := req.Kind.Spec(); !ok {
		return v, types.NewValidationError("unknown action %q", req.Kind)
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return v, types.NewValidationError("asset symbol is required")
	}

	addr, err := types.ParseAddress(req.Account.Address)
	if err != nil {
		return v, types.NewValidationError("invalid account address: %v", err)
	}
	pub, err := signing.NormalizePublicKey(req.Account.PublicKey)
	if err != nil {
		return v, types.NewValidationError("%v", err)
	}
	if req.Account.Signer == nil {
		return v, types.NewValidationError("account has no signer")
	}

	asset := assets.Lookup(req.Symbol)
	raw, err := utils.ToRaw(req.Amount, asset.Decimals)
	if err != nil {
		return v, err
	}
	if utils.IsZeroRaw(raw) {
		return v, types.NewValidationError("amount %s is below the smallest unit of %s", req.Amount, asset.Symbol)
	}
	// Amounts travel on chain as u64
	if _, err := utils.RawToUint64(raw); err != nil {
		return v, err
	}

	v.asset = asset
	v.rawAmount = raw
	v.address = addr
	v.publicKey = pub
	return v, nil
}
