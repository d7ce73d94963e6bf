// Package bridge drives ETH deposits and withdrawals between L1 and an OP Stack L2
// from submission through the cross-chain message milestones to the terminal status.
package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"op-bridge/pkg/types"
)

// TxHandle is the response of a transaction submission
type TxHandle interface {
	Hash() common.Hash
	// Wait blocks until the transaction is included. A reverted transaction is an error.
	Wait(ctx context.Context) error
}

// Submitter sends bridge transactions on the source layer.
// A nil recipient bridges to the sender's own address.
type Submitter interface {
	DepositETH(ctx context.Context, amount *big.Int, recipient *common.Address) (TxHandle, error)
	WithdrawETH(ctx context.Context, amount *big.Int, recipient *common.Address) (TxHandle, error)
}

// StatusOracle suspends until the message sent by txHash has reached target
type StatusOracle interface {
	WaitForMessageStatus(ctx context.Context, txHash common.Hash, direction types.Direction, target types.MessageStatus) error
}

// Finalizer relays a withdrawal on L1 once it is ready for relay
type Finalizer interface {
	FinalizeMessage(ctx context.Context, txHash common.Hash) error
}

// Messenger is everything the orchestrator needs from the cross-chain messaging layer
type Messenger interface {
	Submitter
	StatusOracle
	Finalizer
}

// BalanceRefresher refreshes the balance of both layers
type BalanceRefresher interface {
	Refresh(ctx context.Context)
}
