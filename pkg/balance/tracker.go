package balance

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/parser"
	"op-bridge/pkg/types"
)

// Querier returns the ETH balance, in wei, of the bridging account on a layer
type Querier interface {
	Balance(ctx context.Context, layer types.Layer) (*big.Int, error)
}

// Tracker keeps the latest known balance per layer. Each layer is refreshed on its own;
// a failed query is recorded on that layer only. Writes are last-write-wins.
type Tracker struct {
	querier Querier
	now     func() time.Time
	l1      atomic.Pointer[types.BalanceSnapshot]
	l2      atomic.Pointer[types.BalanceSnapshot]

	// OnUpdate, if set, is called with every stored snapshot
	OnUpdate func(types.BalanceSnapshot)
}

// NewTracker creates a tracker with no snapshot yet (both layers "loading")
func NewTracker(querier Querier) *Tracker {
	return &Tracker{
		querier: querier,
		now:     time.Now,
	}
}

// Refresh queries both layers concurrently and waits for both
func (t *Tracker) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	for _, layer := range []types.Layer{types.L1, types.L2} {
		wg.Add(1)
		go func(layer types.Layer) {
			defer wg.Done()
			t.RefreshLayer(ctx, layer)
		}(layer)
	}
	wg.Wait()
}

// RefreshLayer queries one layer and stores the result
func (t *Tracker) RefreshLayer(ctx context.Context, layer types.Layer) types.BalanceSnapshot {
	snapshot := types.BalanceSnapshot{
		Layer:     layer,
		FetchedAt: t.now(),
	}

	wei, err := t.querier.Balance(ctx, layer)
	if err != nil {
		snapshot.Err = errors.Wrapf(bridge.ErrBalanceQuery, "%s: %v", layer, err).Error()
		// keep showing the last known value next to the error
		if prev := t.Snapshot(layer); prev != nil {
			snapshot.Amount = prev.Amount
			snapshot.Wei = prev.Wei
		}
	} else {
		snapshot.Wei = wei
		snapshot.Amount = parser.FormatEther(wei)
	}

	t.slot(layer).Store(&snapshot)
	if t.OnUpdate != nil {
		t.OnUpdate(snapshot)
	}
	return snapshot
}

// Snapshot returns the latest snapshot of a layer, nil while the first query is pending
func (t *Tracker) Snapshot(layer types.Layer) *types.BalanceSnapshot {
	return t.slot(layer).Load()
}

func (t *Tracker) slot(layer types.Layer) *atomic.Pointer[types.BalanceSnapshot] {
	if layer == types.L2 {
		return &t.l2
	}
	return &t.l1
}
