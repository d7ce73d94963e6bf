package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/operation"
	"op-bridge/pkg/types"
)

// ShutdownTimeout bounds a graceful shutdown
const ShutdownTimeout = 5 * time.Second

// Bridge starts operations; *bridge.Orchestrator implements it
type Bridge interface {
	NewOperation(direction types.Direction, amount string, opts ...bridge.OperationOption) (*types.BridgeOperation, error)
	Run(ctx context.Context, op *types.BridgeOperation) error
	Resume(ctx context.Context, direction types.Direction, txHash common.Hash, opts ...bridge.OperationOption) (*types.BridgeOperation, error)
}

// Balances serves balance snapshots; *balance.Tracker implements it
type Balances interface {
	Snapshot(layer types.Layer) *types.BalanceSnapshot
	Refresh(ctx context.Context)
}

// Server exposes bridge operations over HTTP. Operations started through it run in the
// background until they are terminal or the server shuts down.
type Server struct {
	bridge   Bridge
	registry *operation.Registry
	balances Balances
	http     *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server listening on addr. The registry must observe the orchestrator
// behind b for operation status to show up.
func New(addr string, b Bridge, registry *operation.Registry, balances Balances) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		bridge:   b,
		registry: registry,
		balances: balances,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Options("/*", CORSHeaders)

	r.Get("/state", s.State)

	r.Post("/deposit", s.Submit(types.Deposit))
	r.Post("/withdraw", s.Submit(types.Withdraw))

	r.Get("/operations", s.ListOperations)
	r.Post("/operations/resume", s.Resume)
	r.Get("/operations/{id}", s.GetOperation)
	r.Delete("/operations/{id}", s.DeleteOperation)

	r.Get("/balance/{layer}", s.Balance)
	r.Post("/balance/refresh", s.RefreshBalances)

	return r
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	log.Printf("[Server] listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels running operations and waits for them
// to return or for ctx to expire
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("[Server] operations still running at shutdown")
	}
	return err
}

// background runs fn on the server context
func (s *Server) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}
