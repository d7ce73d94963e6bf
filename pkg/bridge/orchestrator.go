package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"op-bridge/pkg/parser"
	"op-bridge/pkg/types"
)

// Orchestrator sequences bridge operations. It is safe for concurrent use; operations
// started concurrently share nothing but the balance refresher.
type Orchestrator struct {
	messenger     Messenger
	balances      BalanceRefresher
	observer      Observer
	statusTimeout time.Duration
	now           func() time.Time

	mu       sync.Mutex
	inflight map[common.Hash]string // tx hash -> operation ID being polled
}

// NewOrchestrator creates an orchestrator. balances may be nil.
func NewOrchestrator(messenger Messenger, balances BalanceRefresher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		messenger: messenger,
		balances:  balances,
		observer:  nopObserver{},
		now:       time.Now,
		inflight:  make(map[common.Hash]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewOperation validates the amount and builds an operation that has not been sent yet
func (o *Orchestrator) NewOperation(direction types.Direction, amount string, opts ...OperationOption) (*types.BridgeOperation, error) {
	if direction != types.Deposit && direction != types.Withdraw {
		return nil, errors.Errorf("unknown direction %q", direction)
	}

	wei, err := parser.ParseEther(amount)
	if err != nil {
		return nil, err
	}

	cfg := operationConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.New().String()
	}

	op := &types.BridgeOperation{
		ID:        cfg.id,
		Direction: direction,
		Amount:    parser.FormatEther(wei),
		AmountWei: wei,
	}
	if cfg.recipient != nil {
		op.Recipient = cfg.recipient.Hex()
	}
	return op, nil
}

// Deposit bridges amount ETH from L1 to L2:
// Submitted -> Relayed
func (o *Orchestrator) Deposit(ctx context.Context, amount string, opts ...OperationOption) (*types.BridgeOperation, error) {
	op, err := o.NewOperation(types.Deposit, amount, opts...)
	if err != nil {
		return nil, err
	}
	return op, o.Run(ctx, op)
}

// Withdraw bridges amount ETH from L2 to L1:
// Submitted -> InChallengePeriod -> ReadyForRelay -> Finalizing -> Relayed
func (o *Orchestrator) Withdraw(ctx context.Context, amount string, opts ...OperationOption) (*types.BridgeOperation, error) {
	op, err := o.NewOperation(types.Withdraw, amount, opts...)
	if err != nil {
		return nil, err
	}
	return op, o.Run(ctx, op)
}

// Run submits an operation built by NewOperation and drives it to a terminal status.
// The operation is mutated in place; observers get copies.
func (o *Orchestrator) Run(ctx context.Context, op *types.BridgeOperation) error {
	if op.Status != "" {
		return errors.Errorf("operation %s was already started", op.ID)
	}
	if op.Direction != types.Deposit && op.Direction != types.Withdraw {
		return errors.Errorf("unknown direction %q", op.Direction)
	}
	if op.AmountWei == nil || op.AmountWei.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "operation %s has no positive amount", op.ID)
	}

	op.SubmittedAt = o.now()

	var recipient *common.Address
	if op.Recipient != "" {
		addr := common.HexToAddress(op.Recipient)
		recipient = &addr
	}

	var (
		handle TxHandle
		err    error
	)
	if op.Direction == types.Withdraw {
		handle, err = o.messenger.WithdrawETH(ctx, op.AmountWei, recipient)
	} else {
		handle, err = o.messenger.DepositETH(ctx, op.AmountWei, recipient)
	}
	if err != nil {
		return o.fail(op, ErrSubmission, err)
	}

	op.TxHash = handle.Hash()
	if err := o.claim(op); err != nil {
		return o.fail(op, ErrAlreadyPolling, err)
	}
	defer o.release(op)

	o.transition(op, types.StatusSubmitted)

	if err := handle.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return o.fail(op, ErrCancelled, err)
		}
		return o.fail(op, ErrSubmission, err)
	}

	return o.drive(ctx, op)
}

// Resume picks up an operation whose transaction was sent earlier (for example by a
// previous run that was interrupted) and drives it from Submitted to its terminal status.
// Only WithID and WithPrevious are honored among opts.
func (o *Orchestrator) Resume(ctx context.Context, direction types.Direction, txHash common.Hash, opts ...OperationOption) (*types.BridgeOperation, error) {
	if direction != types.Deposit && direction != types.Withdraw {
		return nil, errors.Errorf("unknown direction %q", direction)
	}

	cfg := operationConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	op := &types.BridgeOperation{
		ID:          cfg.id,
		Direction:   direction,
		TxHash:      txHash,
		SubmittedAt: o.now(),
	}

	if prev := cfg.previous; prev != nil {
		if prev.TxHash != txHash || prev.Direction != direction {
			return nil, errors.Errorf("operation %s is a %s of %s, not a %s of %s",
				prev.ID, prev.Direction, prev.TxHash.Hex(), direction, txHash.Hex())
		}
		if op.ID == "" {
			op.ID = prev.ID
		}
		op.Amount = prev.Amount
		op.AmountWei = prev.AmountWei
		op.Recipient = prev.Recipient
		op.History = append([]types.Transition(nil), prev.History...)
		if !prev.SubmittedAt.IsZero() {
			op.SubmittedAt = prev.SubmittedAt
		}
	}
	if op.ID == "" {
		op.ID = uuid.New().String()
	}

	if err := o.claim(op); err != nil {
		return op, o.fail(op, ErrAlreadyPolling, err)
	}
	defer o.release(op)

	o.transition(op, types.StatusSubmitted)
	return op, o.drive(ctx, op)
}

// drive walks the milestones after the source transaction was included
func (o *Orchestrator) drive(ctx context.Context, op *types.BridgeOperation) error {
	if op.Direction == types.Withdraw {
		if err := o.await(ctx, op, types.MessageInChallengePeriod); err != nil {
			return err
		}
		o.transition(op, types.StatusInChallengePeriod)

		if err := o.await(ctx, op, types.MessageReadyForRelay); err != nil {
			return err
		}
		o.transition(op, types.StatusReadyForRelay)

		o.transition(op, types.StatusFinalizing)
		if err := o.messenger.FinalizeMessage(ctx, op.TxHash); err != nil {
			return o.fail(op, ErrFinalize, err)
		}
	}

	if err := o.await(ctx, op, types.MessageRelayed); err != nil {
		return err
	}
	o.transition(op, types.StatusRelayed)

	if o.balances != nil {
		o.balances.Refresh(ctx)
	}
	return nil
}

// await blocks until the oracle reports target, bounded by the status timeout
func (o *Orchestrator) await(ctx context.Context, op *types.BridgeOperation, target types.MessageStatus) error {
	waitCtx := ctx
	if o.statusTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, o.statusTimeout)
		defer cancel()
	}

	err := o.messenger.WaitForMessageStatus(waitCtx, op.TxHash, op.Direction, target)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrMessageFailed):
		return o.fail(op, ErrMessageFailed, errors.Wrapf(err, "waiting for %s", target))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return o.fail(op, ErrCancelled, errors.Wrapf(err, "waiting for %s", target))
	case errors.Is(err, context.DeadlineExceeded) || waitCtx.Err() != nil:
		return o.fail(op, ErrOracleTimeout, errors.Wrapf(err, "waiting for %s", target))
	default:
		return o.fail(op, ErrOracle, errors.Wrapf(err, "waiting for %s", target))
	}
}

func (o *Orchestrator) transition(op *types.BridgeOperation, status types.OperationStatus) {
	now := o.now()
	t := types.Transition{
		Status:  status,
		At:      now,
		Elapsed: op.Elapsed(now),
	}
	op.Status = status
	op.History = append(op.History, t)

	snapshot := *op
	snapshot.History = append([]types.Transition(nil), op.History...)
	o.observer.OnTransition(snapshot, t)
}

func (o *Orchestrator) fail(op *types.BridgeOperation, kind, cause error) error {
	opErr := &OperationError{
		Direction: op.Direction,
		Status:    op.Status,
		Kind:      kind,
		Err:       cause,
	}
	op.Error = opErr.Error()
	o.transition(op, types.StatusFailed)
	return opErr
}

func (o *Orchestrator) claim(op *types.BridgeOperation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if owner, busy := o.inflight[op.TxHash]; busy {
		return errors.Errorf("transaction %s is owned by operation %s", op.TxHash.Hex(), owner)
	}
	o.inflight[op.TxHash] = op.ID
	return nil
}

func (o *Orchestrator) release(op *types.BridgeOperation) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inflight[op.TxHash] == op.ID {
		delete(o.inflight, op.TxHash)
	}
}
