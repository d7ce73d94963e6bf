package types

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Direction is the way ETH moves across the bridge
type Direction string

const (
	Deposit  Direction = "deposit"  // L1 -> L2
	Withdraw Direction = "withdraw" // L2 -> L1
)

// ParseDirection accepts "deposit"/"withdraw" and a few aliases
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit", "d", "l1-to-l2":
		return Deposit, true
	case "withdraw", "withdrawal", "w", "l2-to-l1":
		return Withdraw, true
	default:
		return "", false
	}
}

// SourceLayer returns the layer the bridge transaction is sent on
func (d Direction) SourceLayer() Layer {
	if d == Withdraw {
		return L2
	}
	return L1
}

// Layer identifies a chain layer
type Layer string

const (
	L1 Layer = "l1"
	L2 Layer = "l2"
)

// OperationStatus is the client-observable state of a bridge operation
type OperationStatus string

const (
	StatusSubmitted         OperationStatus = "submitted"           // tx sent on the source layer
	StatusInChallengePeriod OperationStatus = "in_challenge_period" // withdrawal only
	StatusReadyForRelay     OperationStatus = "ready_for_relay"     // withdrawal only
	StatusFinalizing        OperationStatus = "finalizing"          // withdrawal only
	StatusRelayed           OperationStatus = "relayed"             // terminal
	StatusFailed            OperationStatus = "failed"              // terminal
)

// IsTerminal reports whether no further transition can happen
func (s OperationStatus) IsTerminal() bool {
	return s == StatusRelayed || s == StatusFailed
}

// MessageStatus is the status reported by the cross-chain message oracle.
// Values are ordered the way a message progresses.
type MessageStatus int

const (
	MessageUnconfirmedL1ToL2 MessageStatus = iota
	MessageFailedL1ToL2
	MessageStateRootNotPublished
	MessageReadyToProve
	MessageInChallengePeriod
	MessageReadyForRelay
	MessageRelayed
)

var messageStatusNames = map[MessageStatus]string{
	MessageUnconfirmedL1ToL2:     "UNCONFIRMED_L1_TO_L2_MESSAGE",
	MessageFailedL1ToL2:          "FAILED_L1_TO_L2_MESSAGE",
	MessageStateRootNotPublished: "STATE_ROOT_NOT_PUBLISHED",
	MessageReadyToProve:          "READY_TO_PROVE",
	MessageInChallengePeriod:     "IN_CHALLENGE_PERIOD",
	MessageReadyForRelay:         "READY_FOR_RELAY",
	MessageRelayed:               "RELAYED",
}

func (s MessageStatus) String() string {
	if name, ok := messageStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Reached reports whether a message currently in status s has got at least as far as target.
// A failed deposit never reaches anything but itself.
func (s MessageStatus) Reached(target MessageStatus) bool {
	if s == MessageFailedL1ToL2 || target == MessageFailedL1ToL2 {
		return s == target
	}
	return s >= target
}

// Transition records one status change of an operation
type Transition struct {
	Status  OperationStatus `json:"status"`
	At      time.Time       `json:"at"`
	Elapsed time.Duration   `json:"elapsed"`
}

// BridgeOperation represents one deposit or withdrawal
type BridgeOperation struct {
	ID          string          `json:"id"`
	Direction   Direction       `json:"direction"`
	Amount      string          `json:"amount"` // decimal ETH as entered
	AmountWei   *big.Int        `json:"amount_wei"`
	Recipient   string          `json:"recipient,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	TxHash      common.Hash     `json:"tx_hash"`
	Status      OperationStatus `json:"status"`
	History     []Transition    `json:"history"`
	Error       string          `json:"error,omitempty"`
}

// Elapsed returns time since the operation started
func (op *BridgeOperation) Elapsed(now time.Time) time.Duration {
	if op.SubmittedAt.IsZero() {
		return 0
	}
	return now.Sub(op.SubmittedAt)
}

// Statuses returns the ordered list of statuses the operation went through
func (op *BridgeOperation) Statuses() []OperationStatus {
	statuses := make([]OperationStatus, 0, len(op.History))
	for _, t := range op.History {
		statuses = append(statuses, t.Status)
	}
	return statuses
}

// BalanceSnapshot is the latest known ETH balance on one layer
type BalanceSnapshot struct {
	Layer     Layer     `json:"layer"`
	Amount    string    `json:"amount,omitempty"` // decimal ETH
	Wei       *big.Int  `json:"wei,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	Err       string    `json:"error,omitempty"`
}

// BalanceState is the display substate derived from a snapshot
type BalanceState string

const (
	BalanceLoading BalanceState = "loading"
	BalanceError   BalanceState = "error"
	BalanceResult  BalanceState = "result"
)

// State derives the display substate. A nil snapshot means the first query has not finished.
func (b *BalanceSnapshot) State() BalanceState {
	switch {
	case b == nil:
		return BalanceLoading
	case b.Err != "":
		return BalanceError
	default:
		return BalanceResult
	}
}
