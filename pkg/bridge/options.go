package bridge

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"op-bridge/pkg/types"
)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithObserver sets who is told about every status transition
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithStatusTimeout bounds every single status wait. Zero waits forever.
func WithStatusTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout >= 0 {
			o.statusTimeout = timeout
		}
	}
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// OperationOption configures a single operation
type OperationOption func(*operationConfig)

type operationConfig struct {
	id        string
	recipient *common.Address
	previous  *types.BridgeOperation
}

// WithRecipient bridges to another address instead of the sender
func WithRecipient(recipient common.Address) OperationOption {
	return func(c *operationConfig) {
		c.recipient = &recipient
	}
}

// WithID sets the operation ID instead of generating one
func WithID(id string) OperationOption {
	return func(c *operationConfig) {
		c.id = id
	}
}

// WithPrevious continues the record of an earlier run of the same transaction. Its ID,
// amount, recipient, start time and transitions are kept; new transitions are appended.
func WithPrevious(prev types.BridgeOperation) OperationOption {
	return func(c *operationConfig) {
		c.previous = &prev
	}
}
