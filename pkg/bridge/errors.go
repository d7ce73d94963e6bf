package bridge

import (
	"fmt"

	"github.com/pkg/errors"

	"op-bridge/pkg/parser"
	"op-bridge/pkg/types"
)

var (
	// ErrInvalidAmount is returned before anything is submitted
	ErrInvalidAmount = parser.ErrInvalidAmount

	ErrSubmission     = errors.New("transaction submission failed")
	ErrOracle         = errors.New("message status query failed")
	ErrOracleTimeout  = errors.New("timed out waiting for message status")
	ErrCancelled      = errors.New("operation cancelled")
	ErrFinalize       = errors.New("message finalization failed")
	ErrMessageFailed  = errors.New("cross-chain message failed on the destination layer")
	ErrBalanceQuery   = errors.New("balance query failed")
	ErrAlreadyPolling = errors.New("message status is already being polled for this transaction")
)

// OperationError describes why an operation was aborted and at which status
type OperationError struct {
	Direction types.Direction
	Status    types.OperationStatus // last status reached before the failure, empty if nothing was sent
	Kind      error
	Err       error
}

func (e *OperationError) Error() string {
	// nothing was sent and nothing polled
	if e.Status == "" && e.Kind == ErrAlreadyPolling {
		if e.Err == nil {
			return fmt.Sprintf("%s not started: %v", e.Direction, e.Kind)
		}
		return fmt.Sprintf("%s not started: %v: %v", e.Direction, e.Kind, e.Err)
	}

	at := string(e.Status)
	if at == "" {
		at = "submission"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s aborted at %s: %v", e.Direction, at, e.Kind)
	}
	return fmt.Sprintf("%s aborted at %s: %v: %v", e.Direction, at, e.Kind, e.Err)
}

// Unwrap exposes both the error kind and the underlying cause to errors.Is / errors.As
func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
