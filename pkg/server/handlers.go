package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/operation"
	"op-bridge/pkg/types"
)

func (s *Server) State(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, &APIResponse{
		Status: "ok",
	}, http.StatusOK)
}

// Submit validates a bridge request, starts the operation in the background and
// answers with its ID
func (s *Server) Submit(direction types.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("[Server] error reading request body: %s", err)
			responseError(w, "", "Error reading request body", http.StatusBadRequest)
			return
		}

		var req BridgeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			responseError(w, "", "Cannot unmarshal input JSON", http.StatusBadRequest)
			return
		}

		var opts []bridge.OperationOption
		if req.Recipient != "" {
			if err := ethav.Validate(req.Recipient); err != nil {
				responseError(w, "recipient", "Invalid recipient address", http.StatusBadRequest)
				return
			}
			opts = append(opts, bridge.WithRecipient(common.HexToAddress(req.Recipient)))
		}

		op, err := s.bridge.NewOperation(direction, req.Amount, opts...)
		if err != nil {
			responseError(w, "amount", err.Error(), http.StatusBadRequest)
			return
		}

		if err := s.registry.Add(*op); err != nil {
			log.Printf("[Server] error registering operation: %s", err)
			responseError(w, "", "Cannot register operation", http.StatusInternalServerError)
			return
		}

		s.background(func(ctx context.Context) {
			if err := s.bridge.Run(ctx, op); err != nil {
				log.Printf("[Server] operation %s: %s", op.ID, err)
			}
		})

		responseJSON(w, &APIOperationResponse{
			Status: "ok",
			ID:     op.ID,
		}, http.StatusAccepted)
	}
}

// Resume polls a transaction sent earlier to its terminal status
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responseError(w, "", "Cannot unmarshal input JSON", http.StatusBadRequest)
		return
	}

	direction, ok := types.ParseDirection(req.Direction)
	if !ok {
		responseError(w, "direction", "Direction must be deposit or withdraw", http.StatusBadRequest)
		return
	}

	raw, err := hexutil.Decode(req.TxHash)
	if err != nil || len(raw) != common.HashLength {
		responseError(w, "tx_hash", "Invalid transaction hash", http.StatusBadRequest)
		return
	}
	txHash := common.BytesToHash(raw)

	op := types.BridgeOperation{
		ID:        uuid.New().String(),
		Direction: direction,
		TxHash:    txHash,
	}
	// Add reserves the hash, so a concurrent resume of the same transaction is refused here
	if err := s.registry.Add(op); err != nil {
		if errors.Is(err, bridge.ErrAlreadyPolling) {
			owner, _ := s.registry.Polling(txHash)
			responseError(w, "tx_hash", "Already polled by operation "+owner, http.StatusConflict)
			return
		}
		log.Printf("[Server] error registering operation: %s", err)
		responseError(w, "", "Cannot register operation", http.StatusInternalServerError)
		return
	}

	s.background(func(ctx context.Context) {
		if _, err := s.bridge.Resume(ctx, direction, txHash, bridge.WithID(op.ID)); err != nil {
			log.Printf("[Server] operation %s: %s", op.ID, err)
		}
	})

	responseJSON(w, &APIOperationResponse{
		Status: "ok",
		ID:     op.ID,
	}, http.StatusAccepted)
}

func (s *Server) GetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := s.registry.Get(chi.URLParam(r, "id"))
	if errors.Is(err, operation.ErrNotFound) {
		responseError(w, "id", "Operation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		responseError(w, "", err.Error(), http.StatusInternalServerError)
		return
	}
	responseJSON(w, op, http.StatusOK)
}

// DeleteOperation removes a recorded operation that is not being polled
func (s *Server) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	err := s.registry.Delete(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, operation.ErrNotFound):
		responseError(w, "id", "Operation not found", http.StatusNotFound)
	case errors.Is(err, bridge.ErrAlreadyPolling):
		responseError(w, "id", "Operation is still running", http.StatusConflict)
	case err != nil:
		log.Printf("[Server] error deleting operation: %s", err)
		responseError(w, "", "Cannot delete operation", http.StatusInternalServerError)
	default:
		responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
	}
}

func (s *Server) ListOperations(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, s.registry.List(), http.StatusOK)
}

func (s *Server) Balance(w http.ResponseWriter, r *http.Request) {
	var layer types.Layer
	switch chi.URLParam(r, "layer") {
	case "l1":
		layer = types.L1
	case "l2":
		layer = types.L2
	default:
		responseError(w, "layer", "Layer must be l1 or l2", http.StatusNotFound)
		return
	}

	snapshot := s.balances.Snapshot(layer)
	resp := &APIBalanceResponse{
		Layer: string(layer),
		State: string(snapshot.State()),
	}
	if snapshot != nil {
		resp.Balance = snapshot.Amount
		resp.Error = snapshot.Err
		resp.FetchedAt = &snapshot.FetchedAt
		if snapshot.Wei != nil {
			resp.Wei = snapshot.Wei.String()
		}
	}
	responseJSON(w, resp, http.StatusOK)
}

func (s *Server) RefreshBalances(w http.ResponseWriter, r *http.Request) {
	s.background(s.balances.Refresh)
	responseJSON(w, &APIResponse{
		Status: "ok",
	}, http.StatusAccepted)
}
