// Package orchestrator sequences the write workflows against the escrow
// ledger: an optional allowance grant followed by the escrow action, each
// awaited until mined.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"goscrow/EVMRPC"
	"goscrow/allowance"
	"goscrow/config"
	"goscrow/logger"
	"goscrow/metrics"
	"goscrow/tokens"
	"goscrow/types"
	"goscrow/units"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	ActionCreate   = "createOperation"
	ActionComplete = "completeOperation"
	ActionCancel   = "cancelOperation"
	ActionAddToken = "addToken"
)

// Refresher is asked for an out-of-band refresh after a confirmed write.
type Refresher interface {
	TriggerRefresh(stream string)
}

type CreateRequest struct {
	TokenA  string `json:"tokenA"`
	TokenB  string `json:"tokenB"`
	AmountA string `json:"amountA"` // human units, scaled by tokenA decimals
	AmountB string `json:"amountB"`
	// seconds, 0 lets the ledger apply its default
	Duration int64 `json:"duration"`
}

type Orchestrator struct {
	reader    EVMRPC.Reader
	writer    EVMRPC.Writer
	allowance *allowance.Coordinator
	metadata  *tokens.MetadataCache
	metrics   *metrics.Metrics
	trail     *Trail
	refresher Refresher
	observer  func(*Workflow)
}

// New accepts a nil writer: reads keep working and every workflow fails
// with ErrNoSigningIdentity.
func New(reader EVMRPC.Reader, writer EVMRPC.Writer, coordinator *allowance.Coordinator, metadata *tokens.MetadataCache, trail *Trail, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		reader:    reader,
		writer:    writer,
		allowance: coordinator,
		metadata:  metadata,
		metrics:   m,
		trail:     trail,
	}
}

func (o *Orchestrator) SetRefresher(r Refresher) {
	o.refresher = r
}

// SetObserver registers a callback invoked on every phase change.
func (o *Orchestrator) SetObserver(f func(*Workflow)) {
	o.observer = f
}

func (o *Orchestrator) Trail() *Trail {
	return o.trail
}

// Account is the signing identity, or the zero address without one.
func (o *Orchestrator) Account() (common.Address, bool) {
	if o.writer == nil {
		return common.Address{}, false
	}
	return o.writer.Account(), true
}

func parseAddress(field, s string) (common.Address, error) {
	addr, ok := EVMRPC.ParseAddress(s)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, types.InvalidInput(field, "%q is not an address", s)
	}
	if err := ethav.Validate(addr.Hex()); err != nil {
		return common.Address{}, types.InvalidInput(field, "%q: %s", s, err.Error())
	}
	return addr, nil
}

// ParseID accepts a decimal operation id.
func ParseID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() < 0 {
		return nil, types.InvalidInput("id", "%q is not an operation id", s)
	}
	return id, nil
}

func (o *Orchestrator) log(w *Workflow) *logrus.Entry {
	return logger.Logger.WithField("workflow", w.ID).WithField("action", w.Action).WithField("subject", w.Subject)
}

func (o *Orchestrator) audit(w *Workflow, phase PhaseName, txHash common.Hash, message string) {
	entry := types.AuditEntry{
		Action:  w.Action,
		Subject: w.Subject,
		Phase:   string(phase),
		Message: message,
	}
	if txHash != (common.Hash{}) {
		entry.TxHash = txHash.Hex()
	}
	o.trail.Record(entry)
}

// grant runs the allowance phase of w.
func (o *Orchestrator) grant(ctx context.Context, w *Workflow, token common.Address, amount *big.Int) error {
	g, err := o.allowance.EnsureAllowance(ctx, token, o.writer.Account(), o.reader.EscrowAddress(), amount)
	if err != nil {
		w.set(PhaseAllowance, PhaseFailed, g.TxHash, err)
		o.audit(w, PhaseAllowance, g.TxHash, "failed: "+err.Error())
		return err
	}
	if !g.Needed {
		w.set(PhaseAllowance, PhaseSkipped, common.Hash{}, nil)
		return nil
	}
	w.set(PhaseAllowance, PhaseConfirmed, g.TxHash, nil)
	o.audit(w, PhaseAllowance, g.TxHash, fmt.Sprintf("approved %s of %s", g.Amount, types.LowerHex(token)))
	return nil
}

// act runs the action phase of w: submit, then wait for the receipt.
func (o *Orchestrator) act(ctx context.Context, w *Workflow, submit func() (EVMRPC.PendingTx, error)) error {
	tx, err := submit()
	if err != nil {
		w.set(PhaseAction, PhaseFailed, common.Hash{}, err)
		o.audit(w, PhaseAction, common.Hash{}, "failed: "+err.Error())
		return err
	}
	o.log(w).Infof("Submitted %s, tx=%s", w.Action, tx.Hash().Hex())
	w.set(PhaseAction, PhasePending, tx.Hash(), nil)
	o.audit(w, PhaseAction, tx.Hash(), "submitted")

	if _, err := tx.Wait(ctx); err != nil {
		w.set(PhaseAction, PhaseFailed, tx.Hash(), err)
		o.audit(w, PhaseAction, tx.Hash(), "failed: "+err.Error())
		return err
	}
	w.set(PhaseAction, PhaseConfirmed, tx.Hash(), nil)
	o.audit(w, PhaseAction, tx.Hash(), "confirmed")
	return nil
}

// finish counts the outcome and asks for fresh snapshots after a success.
func (o *Orchestrator) finish(w *Workflow, err error, streams ...string) {
	if err != nil {
		o.metrics.Workflows.WithLabelValues(w.Action, "failed").Inc()
		entry := o.log(w)
		if w.LeftoverAllowance() {
			entry = entry.WithField("leftoverAllowance", true)
		}
		entry.Warnf("Workflow failed: %s", err.Error())
		return
	}
	o.metrics.Workflows.WithLabelValues(w.Action, "confirmed").Inc()
	o.log(w).Infof("Workflow confirmed")
	if o.refresher != nil {
		for _, s := range streams {
			o.refresher.TriggerRefresh(s)
		}
	}
}

// reject fails a workflow before anything was sent.
func (o *Orchestrator) reject(w *Workflow, err error) (*Workflow, error) {
	w.set(PhaseAllowance, PhaseFailed, common.Hash{}, err)
	o.metrics.Workflows.WithLabelValues(w.Action, "rejected").Inc()
	o.audit(w, PhaseAllowance, common.Hash{}, "rejected: "+err.Error())
	return w, err
}

func (o *Orchestrator) validateCreate(req CreateRequest) (tokenA, tokenB common.Address, err error) {
	if tokenA, err = parseAddress("tokenA", req.TokenA); err != nil {
		return
	}
	if tokenB, err = parseAddress("tokenB", req.TokenB); err != nil {
		return
	}
	if tokenA == tokenB {
		err = types.InvalidInput("tokenB", "tokenA and tokenB must differ")
		return
	}
	if e := units.Positive(req.AmountA); e != nil {
		err = types.InvalidInput("amountA", "%s", e.Error())
		return
	}
	if e := units.Positive(req.AmountB); e != nil {
		err = types.InvalidInput("amountB", "%s", e.Error())
		return
	}
	if req.Duration < 0 || (req.Duration > 0 && req.Duration < config.MinOperationDuration) {
		err = types.InvalidInput("duration", "must be 0 or at least %d seconds, got %d", config.MinOperationDuration, req.Duration)
	}
	return
}

// scale reads both tokens' decimals from the ledger, never from the
// metadata cache, and converts the human amounts.
func (o *Orchestrator) scale(ctx context.Context, tokenA, tokenB common.Address, req CreateRequest) (amountA, amountB *big.Int, err error) {
	var decA, decB uint8
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		decA, err = o.reader.TokenDecimals(gctx, tokenA)
		return
	})
	g.Go(func() (err error) {
		decB, err = o.reader.TokenDecimals(gctx, tokenB)
		return
	})
	if err = g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("reading decimals: %w", err)
	}

	if amountA, err = units.Parse(req.AmountA, decA); err != nil {
		return nil, nil, types.InvalidInput("amountA", "%s", err.Error())
	}
	if amountB, err = units.Parse(req.AmountB, decB); err != nil {
		return nil, nil, types.InvalidInput("amountB", "%s", err.Error())
	}
	return amountA, amountB, nil
}

// CreateOperation validates req, grants tokenA to the escrow when needed and
// creates the operation. The duration overload is used only for a positive
// duration.
func (o *Orchestrator) CreateOperation(ctx context.Context, req CreateRequest) (*Workflow, error) {
	w := newWorkflow(ActionCreate, fmt.Sprintf("%s/%s", strings.ToLower(req.TokenA), strings.ToLower(req.TokenB)), o.observer)

	tokenA, tokenB, err := o.validateCreate(req)
	if err != nil {
		return o.reject(w, err)
	}
	if o.writer == nil {
		return o.reject(w, types.ErrNoSigningIdentity)
	}
	w.Subject = fmt.Sprintf("%s/%s", types.LowerHex(tokenA), types.LowerHex(tokenB))

	amountA, amountB, err := o.scale(ctx, tokenA, tokenB, req)
	if err != nil {
		return o.reject(w, err)
	}

	defer func() { o.finish(w, err, types.StreamOperations, types.StreamBalances) }()
	if err = o.grant(ctx, w, tokenA, amountA); err != nil {
		return w, err
	}
	err = o.act(ctx, w, func() (EVMRPC.PendingTx, error) {
		if req.Duration > 0 {
			return o.writer.CreateOperationWithDuration(ctx, tokenA, tokenB, amountA, amountB, big.NewInt(req.Duration))
		}
		return o.writer.CreateOperation(ctx, tokenA, tokenB, amountA, amountB)
	})
	return w, err
}

// CompleteOperation reads operation id to learn tokenB and amountB, grants
// them to the escrow when needed and completes the operation.
func (o *Orchestrator) CompleteOperation(ctx context.Context, id *big.Int) (*Workflow, error) {
	w := newWorkflow(ActionComplete, id.String(), o.observer)
	if o.writer == nil {
		return o.reject(w, types.ErrNoSigningIdentity)
	}

	op, err := o.reader.Operation(ctx, id)
	if err != nil {
		return o.reject(w, err)
	}
	if op.Status != types.StatusOpen {
		return o.reject(w, types.InvalidInput("id", "operation %s is %s", id, op.Status))
	}

	defer func() { o.finish(w, err, types.StreamOperations, types.StreamBalances) }()
	if err = o.grant(ctx, w, op.TokenB, op.AmountB); err != nil {
		return w, err
	}
	err = o.act(ctx, w, func() (EVMRPC.PendingTx, error) {
		return o.writer.CompleteOperation(ctx, id)
	})
	return w, err
}

// CancelOperation has no allowance phase.
func (o *Orchestrator) CancelOperation(ctx context.Context, id *big.Int) (*Workflow, error) {
	w := newWorkflow(ActionCancel, id.String(), o.observer)
	if o.writer == nil {
		return o.reject(w, types.ErrNoSigningIdentity)
	}
	w.set(PhaseAllowance, PhaseSkipped, common.Hash{}, nil)

	var err error
	defer func() { o.finish(w, err, types.StreamOperations, types.StreamBalances) }()
	err = o.act(ctx, w, func() (EVMRPC.PendingTx, error) {
		return o.writer.CancelOperation(ctx, id)
	})
	return w, err
}

// AddToken whitelists a token. The caller must be the ledger owner and the
// token must not collide with a registered one by address, name or symbol.
// The ledger enforces ownership again; the local checks only fail fast.
func (o *Orchestrator) AddToken(ctx context.Context, address string) (*Workflow, error) {
	w := newWorkflow(ActionAddToken, strings.ToLower(address), o.observer)

	token, err := parseAddress("address", address)
	if err != nil {
		return o.reject(w, err)
	}
	if o.writer == nil {
		return o.reject(w, types.ErrNoSigningIdentity)
	}

	isOwner, err := o.IsOwner(ctx)
	if err != nil {
		return o.reject(w, fmt.Errorf("reading owner: %w", err))
	}
	if !isOwner {
		return o.reject(w, fmt.Errorf("%w: %s is not the owner", types.ErrUnauthorized, types.LowerHex(o.writer.Account())))
	}
	if err := o.checkDuplicate(ctx, token); err != nil {
		return o.reject(w, err)
	}
	w.set(PhaseAllowance, PhaseSkipped, common.Hash{}, nil)

	defer func() { o.finish(w, err, types.StreamTokens) }()
	err = o.act(ctx, w, func() (EVMRPC.PendingTx, error) {
		return o.writer.AddToken(ctx, token)
	})
	if err == nil {
		o.metadata.Invalidate(token)
	}
	return w, err
}

func (o *Orchestrator) checkDuplicate(ctx context.Context, token common.Address) error {
	list, err := o.reader.AllowedTokens(ctx)
	if err != nil {
		return fmt.Errorf("reading whitelist: %w", err)
	}
	for _, addr := range list {
		if addr == token {
			return fmt.Errorf("%w: address %s", types.ErrDuplicateRegistration, types.LowerHex(token))
		}
	}

	candidate := o.metadata.Get(ctx, token)
	if !candidate.Available {
		// a later AddToken for the same address reads it again
		o.metadata.Invalidate(token)
		return candidate.Err
	}
	o.metadata.Prefetch(ctx, list)
	for _, addr := range list {
		md := o.metadata.Get(ctx, addr)
		if !md.Available {
			continue
		}
		if candidate.Metadata.Name != "" && strings.EqualFold(md.Metadata.Name, candidate.Metadata.Name) {
			return fmt.Errorf("%w: name %q is used by %s", types.ErrDuplicateRegistration, candidate.Metadata.Name, md.Metadata.Address)
		}
		if candidate.Metadata.Symbol != "" && strings.EqualFold(md.Metadata.Symbol, candidate.Metadata.Symbol) {
			return fmt.Errorf("%w: symbol %q is used by %s", types.ErrDuplicateRegistration, candidate.Metadata.Symbol, md.Metadata.Address)
		}
	}
	return nil
}

// IsOwner compares the signing identity with the ledger owner.
func (o *Orchestrator) IsOwner(ctx context.Context) (bool, error) {
	account, ok := o.Account()
	if !ok {
		return false, types.ErrNoSigningIdentity
	}
	owner, err := o.reader.Owner(ctx)
	if err != nil {
		return false, err
	}
	return owner == account, nil
}

// Classify returns the taxonomy error err belongs to, or nil.
func Classify(err error) error {
	for _, known := range []error{
		types.ErrNoSigningIdentity,
		types.ErrInvalidInput,
		types.ErrUnauthorized,
		types.ErrDuplicateRegistration,
		types.ErrTransactionRejected,
		types.ErrTransactionReverted,
		types.ErrMetadataUnavailable,
		types.ErrOperationNotFound,
		types.ErrTransport,
	} {
		if errors.Is(err, known) {
			return known
		}
	}
	return nil
}
