package messenger

import (
	"context"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/types"
)

// MessageStatus resolves the current status of the message sent by txHash
func (m *Messenger) MessageStatus(ctx context.Context, txHash common.Hash, direction types.Direction) (types.MessageStatus, error) {
	if direction == types.Withdraw {
		return m.withdrawalStatus(ctx, txHash)
	}
	return m.depositStatus(ctx, txHash)
}

// WaitForMessageStatus polls until the message reaches target. A withdrawal that becomes
// provable while waiting for a later status is proven on the way.
func (m *Messenger) WaitForMessageStatus(ctx context.Context, txHash common.Hash, direction types.Direction, target types.MessageStatus) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	last := types.MessageStatus(-1)
	for {
		status, err := m.statusFn(ctx, txHash, direction)
		if err != nil {
			return err
		}

		if status != last {
			log.Printf("[Messenger] %s %s: %s", direction, txHash.Hex(), status)
			last = status
		}

		if status.Reached(target) {
			return nil
		}
		if status == types.MessageFailedL1ToL2 {
			return errors.Wrapf(bridge.ErrMessageFailed, "%s was not relayed on L2", txHash.Hex())
		}

		if m.shouldProve(direction, status, target) {
			if err := m.proveFn(ctx, txHash); err != nil {
				return errors.Wrap(err, "prove withdrawal")
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Messenger) shouldProve(direction types.Direction, status, target types.MessageStatus) bool {
	return !m.cfg.DisableAutoProve &&
		direction == types.Withdraw &&
		status == types.MessageReadyToProve &&
		target > types.MessageReadyToProve
}

func (m *Messenger) receipt(ctx context.Context, c *chain, txHash common.Hash) (*gethtypes.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, errors.Errorf("transaction %s reverted", txHash.Hex())
	}
	return receipt, nil
}

func (m *Messenger) depositStatus(ctx context.Context, txHash common.Hash) (types.MessageStatus, error) {
	receipt, err := m.receipt(ctx, m.l1, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return types.MessageUnconfirmedL1ToL2, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "deposit receipt")
	}

	msg, err := parseSentMessage(receipt, m.cfg.Contracts.L1CrossDomainMessenger)
	if err != nil {
		return 0, err
	}
	hash, err := msg.Hash()
	if err != nil {
		return 0, err
	}

	relayed, err := callBool(ctx, m.l2, messengerABI, L2CrossDomainMessenger, "successfulMessages", hash)
	if err != nil {
		return 0, err
	}
	if relayed {
		return types.MessageRelayed, nil
	}

	failed, err := callBool(ctx, m.l2, messengerABI, L2CrossDomainMessenger, "failedMessages", hash)
	if err != nil {
		return 0, err
	}
	if failed {
		return types.MessageFailedL1ToL2, nil
	}
	return types.MessageUnconfirmedL1ToL2, nil
}

// withdrawalFacts is what the chain says about a withdrawal
type withdrawalFacts struct {
	Finalized          bool
	OutputPublished    bool
	ProvenAt           uint64 // 0 when not proven
	FinalizationPeriod uint64
	L1Time             uint64
}

// resolveWithdrawalStatus maps facts to a status the same way the SDK does
func resolveWithdrawalStatus(f withdrawalFacts) types.MessageStatus {
	switch {
	case f.Finalized:
		return types.MessageRelayed
	case !f.OutputPublished:
		return types.MessageStateRootNotPublished
	case f.ProvenAt == 0:
		return types.MessageReadyToProve
	case f.ProvenAt+f.FinalizationPeriod > f.L1Time:
		return types.MessageInChallengePeriod
	default:
		return types.MessageReadyForRelay
	}
}

func (m *Messenger) withdrawalStatus(ctx context.Context, txHash common.Hash) (types.MessageStatus, error) {
	receipt, err := m.receipt(ctx, m.l2, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return types.MessageStateRootNotPublished, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "withdrawal receipt")
	}

	_, hash, err := parseMessagePassed(receipt)
	if err != nil {
		return 0, err
	}

	facts := withdrawalFacts{}
	if facts.Finalized, err = m.finalized(ctx, hash); err != nil {
		return 0, err
	}
	if facts.Finalized {
		return resolveWithdrawalStatus(facts), nil
	}

	latest, err := callUint(ctx, m.l1, outputOracleABI, m.cfg.Contracts.L2OutputOracle, "latestBlockNumber")
	if err != nil {
		return 0, err
	}
	facts.OutputPublished = latest.Cmp(receipt.BlockNumber) >= 0
	if !facts.OutputPublished {
		return resolveWithdrawalStatus(facts), nil
	}

	out, err := call(ctx, m.l1, portalABI, m.cfg.Contracts.OptimismPortal, "provenWithdrawals", hash)
	if err != nil {
		return 0, err
	}
	facts.ProvenAt = out[1].(*big.Int).Uint64()
	if facts.ProvenAt == 0 {
		return resolveWithdrawalStatus(facts), nil
	}

	period, err := callUint(ctx, m.l1, outputOracleABI, m.cfg.Contracts.L2OutputOracle, "FINALIZATION_PERIOD_SECONDS")
	if err != nil {
		return 0, err
	}
	facts.FinalizationPeriod = period.Uint64()

	head, err := m.l1.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get L1 head")
	}
	facts.L1Time = head.Time

	return resolveWithdrawalStatus(facts), nil
}

func (m *Messenger) finalized(ctx context.Context, withdrawalHash common.Hash) (bool, error) {
	return callBool(ctx, m.l1, portalABI, m.cfg.Contracts.OptimismPortal, "finalizedWithdrawals", withdrawalHash)
}
