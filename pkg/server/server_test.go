package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"op-bridge/pkg/balance"
	"op-bridge/pkg/bridge"
	"op-bridge/pkg/operation"
	"op-bridge/pkg/types"
)

type handle struct{ hash common.Hash }

func (h handle) Hash() common.Hash           { return h.hash }
func (h handle) Wait(context.Context) error { return nil }

// messenger relays everything at once unless hold is set
type messenger struct {
	sent      atomic.Int64
	recipient atomic.Pointer[common.Address]
	hold      chan struct{}
}

func (m *messenger) submit(recipient *common.Address) (bridge.TxHandle, error) {
	n := m.sent.Add(1)
	m.recipient.Store(recipient)
	return handle{hash: common.BigToHash(big.NewInt(n))}, nil
}

func (m *messenger) DepositETH(_ context.Context, _ *big.Int, recipient *common.Address) (bridge.TxHandle, error) {
	return m.submit(recipient)
}

func (m *messenger) WithdrawETH(_ context.Context, _ *big.Int, recipient *common.Address) (bridge.TxHandle, error) {
	return m.submit(recipient)
}

func (m *messenger) WaitForMessageStatus(ctx context.Context, _ common.Hash, _ types.Direction, _ types.MessageStatus) error {
	if m.hold == nil {
		return nil
	}
	select {
	case <-m.hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *messenger) FinalizeMessage(context.Context, common.Hash) error { return nil }

type querier struct{}

func (querier) Balance(_ context.Context, layer types.Layer) (*big.Int, error) {
	if layer == types.L2 {
		return nil, errors.New("l2 node down")
	}
	return big.NewInt(15e17), nil
}

type testServer struct {
	*Server
	messenger *messenger
	tracker   *balance.Tracker
	registry  *operation.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry, err := operation.NewRegistry("", 0)
	require.NoError(t, err)

	m := &messenger{}
	tracker := balance.NewTracker(querier{})
	orchestrator := bridge.NewOrchestrator(m, tracker, bridge.WithObserver(registry))

	ts := &testServer{
		Server:    New(":0", orchestrator, registry, tracker),
		messenger: m,
		tracker:   tracker,
		registry:  registry,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		ts.Shutdown(ctx)
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (ts *testServer) waitForStatus(t *testing.T, id string, status types.OperationStatus) types.BridgeOperation {
	t.Helper()

	var op types.BridgeOperation
	require.Eventually(t, func() bool {
		rec := ts.do(t, http.MethodGet, "/operations/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		op = decode[types.BridgeOperation](t, rec)
		return op.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return op
}

func TestState(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/state", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[APIResponse](t, rec).Status)
}

func TestDepositRunsInBackground(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/deposit", BridgeRequest{Amount: "0.1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[APIOperationResponse](t, rec)
	require.NotEmpty(t, resp.ID)

	op := ts.waitForStatus(t, resp.ID, types.StatusRelayed)
	assert.Equal(t, types.Deposit, op.Direction)
	assert.Equal(t, "0.1", op.Amount)
	assert.Equal(t, []types.OperationStatus{types.StatusSubmitted, types.StatusRelayed}, op.Statuses())
}

func TestWithdrawWithRecipient(t *testing.T) {
	ts := newTestServer(t)
	recipient := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	rec := ts.do(t, http.MethodPost, "/withdraw", BridgeRequest{Amount: "0.05", Recipient: recipient})
	require.Equal(t, http.StatusAccepted, rec.Code)

	op := ts.waitForStatus(t, decode[APIOperationResponse](t, rec).ID, types.StatusRelayed)
	assert.Len(t, op.History, 5)
	assert.Equal(t, common.HexToAddress(recipient).Hex(), op.Recipient)
	assert.Equal(t, common.HexToAddress(recipient), *ts.messenger.recipient.Load())
}

func TestSubmitRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		body  interface{}
		field string
	}{
		{"zero amount", BridgeRequest{Amount: "0"}, "amount"},
		{"negative amount", BridgeRequest{Amount: "-1"}, "amount"},
		{"not a number", BridgeRequest{Amount: "lots"}, "amount"},
		{"bad recipient", BridgeRequest{Amount: "1", Recipient: "0x1234"}, "recipient"},
		{"not json", "{", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(t, http.MethodPost, "/deposit", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[APIResponse](t, rec)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.field, resp.Field)
			assert.Zero(t, ts.messenger.sent.Load())
			assert.Zero(t, ts.registry.Count())
		})
	}
}

func TestGetUnknownOperation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/operations/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOperation(t *testing.T) {
	ts := newTestServer(t)
	ts.messenger.hold = make(chan struct{})

	rec := ts.do(t, http.MethodPost, "/operations/resume", ResumeRequest{TxHash: common.HexToHash("0xdef").Hex(), Direction: "deposit"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[APIOperationResponse](t, rec).ID

	// a running operation stays
	rec = ts.do(t, http.MethodDelete, "/operations/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(ts.messenger.hold)
	ts.waitForStatus(t, id, types.StatusRelayed)

	rec = ts.do(t, http.MethodDelete, "/operations/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/operations/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/operations/"+id, nil).Code)
}

func TestListOperations(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/deposit", "/withdraw"} {
		rec := ts.do(t, http.MethodPost, path, BridgeRequest{Amount: "1"})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/operations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.BridgeOperation](t, rec), 2)
}

func TestResume(t *testing.T) {
	ts := newTestServer(t)
	ts.messenger.hold = make(chan struct{})
	txHash := common.HexToHash("0xabc").Hex()

	rec := ts.do(t, http.MethodPost, "/operations/resume", ResumeRequest{TxHash: txHash, Direction: "withdraw"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[APIOperationResponse](t, rec).ID

	ts.waitForStatus(t, id, types.StatusSubmitted)

	// the same transaction cannot be polled twice
	rec = ts.do(t, http.MethodPost, "/operations/resume", ResumeRequest{TxHash: txHash, Direction: "withdraw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(ts.messenger.hold)
	op := ts.waitForStatus(t, id, types.StatusRelayed)
	assert.Zero(t, ts.messenger.sent.Load())
	assert.Equal(t, txHash, op.TxHash.Hex())
}

func TestResumeBackToBackConflicts(t *testing.T) {
	ts := newTestServer(t)
	ts.messenger.hold = make(chan struct{})
	txHash := common.HexToHash("0xabd").Hex()

	// no wait in between: the second request must not slip in before the first one polls
	first := ts.do(t, http.MethodPost, "/operations/resume", ResumeRequest{TxHash: txHash, Direction: "withdraw"})
	second := ts.do(t, http.MethodPost, "/operations/resume", ResumeRequest{TxHash: txHash, Direction: "withdraw"})

	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "tx_hash", decode[APIResponse](t, second).Field)

	id := decode[APIOperationResponse](t, first).ID
	close(ts.messenger.hold)
	ts.waitForStatus(t, id, types.StatusRelayed)

	ops := ts.registry.List()
	require.Len(t, ops, 1)
	assert.Equal(t, types.StatusRelayed, ops[0].Status)
}

func TestResumeRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/operations/resume", ResumeRequest{TxHash: "0x01", Direction: "withdraw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "tx_hash", decode[APIResponse](t, rec).Field)

	rec = ts.do(t, http.MethodPost, "/operations/resume", ResumeRequest{TxHash: common.Hash{}.Hex(), Direction: "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "direction", decode[APIResponse](t, rec).Field)
}

func TestBalanceStates(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/balance/l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loading", decode[APIBalanceResponse](t, rec).State)

	rec = ts.do(t, http.MethodPost, "/balance/refresh", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return ts.tracker.Snapshot(types.L1) != nil && ts.tracker.Snapshot(types.L2) != nil
	}, time.Second, 5*time.Millisecond)

	l1 := decode[APIBalanceResponse](t, ts.do(t, http.MethodGet, "/balance/l1", nil))
	assert.Equal(t, "result", l1.State)
	assert.Equal(t, "1.5", l1.Balance)
	assert.Equal(t, "1500000000000000000", l1.Wei)
	assert.Empty(t, l1.Error)

	l2 := decode[APIBalanceResponse](t, ts.do(t, http.MethodGet, "/balance/l2", nil))
	assert.Equal(t, "error", l2.State)
	assert.Contains(t, l2.Error, "l2 node down")

	rec = ts.do(t, http.MethodGet, "/balance/l3", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodOptions, "/deposit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestShutdownCancelsRunningOperations(t *testing.T) {
	ts := newTestServer(t)
	ts.messenger.hold = make(chan struct{})

	rec := ts.do(t, http.MethodPost, "/withdraw", BridgeRequest{Amount: "1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[APIOperationResponse](t, rec).ID
	ts.waitForStatus(t, id, types.StatusSubmitted)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.Shutdown(ctx))

	op, err := ts.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, op.Status)
	assert.Contains(t, op.Error, bridge.ErrCancelled.Error())
}
