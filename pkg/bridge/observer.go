package bridge

import (
	"log"

	"op-bridge/pkg/types"
)

// Observer is told about every status transition. It receives a copy of the operation
// that it may keep.
type Observer interface {
	OnTransition(op types.BridgeOperation, t types.Transition)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(op types.BridgeOperation, t types.Transition)

func (f ObserverFunc) OnTransition(op types.BridgeOperation, t types.Transition) {
	f(op, t)
}

// MultiObserver fans transitions out to several observers in order
type MultiObserver []Observer

func (m MultiObserver) OnTransition(op types.BridgeOperation, t types.Transition) {
	for _, o := range m {
		if o != nil {
			o.OnTransition(op, t)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnTransition(types.BridgeOperation, types.Transition) {}

// LogObserver writes one log line per transition with the elapsed time
type LogObserver struct {
	Logger *log.Logger // nil uses the standard logger
}

func (l LogObserver) OnTransition(op types.BridgeOperation, t types.Transition) {
	printf := log.Printf
	if l.Logger != nil {
		printf = l.Logger.Printf
	}

	switch t.Status {
	case types.StatusSubmitted:
		printf("[Bridge] %s %s: %s ETH, transaction hash (on %s): %s",
			op.ID, op.Direction, op.Amount, op.Direction.SourceLayer(), op.TxHash.Hex())
	case types.StatusFailed:
		printf("[Bridge] %s %s failed after %.1f seconds: %s", op.ID, op.Direction, t.Elapsed.Seconds(), op.Error)
	case types.StatusRelayed:
		printf("[Bridge] %s %s took %.1f seconds", op.ID, op.Direction, t.Elapsed.Seconds())
	default:
		printf("[Bridge] %s %s reached %s, time so far %.1f seconds", op.ID, op.Direction, t.Status, t.Elapsed.Seconds())
	}
}
