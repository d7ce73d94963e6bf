package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/pkg/errors"

	"op-bridge/config"
	"op-bridge/pkg/balance"
	"op-bridge/pkg/bridge"
	"op-bridge/pkg/messenger"
	"op-bridge/pkg/operation"
	"op-bridge/pkg/rpc"
	"op-bridge/pkg/wallet"
)

// session holds everything a command needs to talk to both layers
type session struct {
	cfg       *config.Config
	wallet    *wallet.Wallet
	l1        *rpc.Conn
	l2        *rpc.Conn
	messenger *messenger.Messenger
	tracker   *balance.Tracker
	registry  *operation.Registry
}

// connect loads the configuration, the signing key and dials both layers
func connect(ctx context.Context, jsonOutput bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	w, err := cfg.Wallet()
	if err != nil {
		return nil, err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Connecting to " + cfg.Network + "..."
		s.Start()
		defer s.Stop()
	}

	l1, err := rpc.Dial(ctx, cfg.L1RPCURLs, cfg.L1ChainID)
	if err != nil {
		return nil, errors.Wrap(err, "L1")
	}
	l2, err := rpc.Dial(ctx, cfg.L2RPCURLs, cfg.L2ChainID)
	if err != nil {
		l1.Close()
		return nil, errors.Wrap(err, "L2")
	}

	m, err := messenger.New(cfg.Messenger(), w, l1, l2)
	if err != nil {
		l1.Close()
		l2.Close()
		return nil, err
	}

	historyPath, err := cfg.HistoryPath()
	if err != nil {
		l1.Close()
		l2.Close()
		return nil, err
	}
	registry, err := operation.NewRegistry(historyPath, cfg.Retention)
	if err != nil {
		l1.Close()
		l2.Close()
		return nil, err
	}

	return &session{
		cfg:       cfg,
		wallet:    w,
		l1:        l1,
		l2:        l2,
		messenger: m,
		tracker:   balance.NewTracker(m),
		registry:  registry,
	}, nil
}

// orchestrator wires the messenger, balances and history together
func (s *session) orchestrator(timeout time.Duration, observers ...bridge.Observer) *bridge.Orchestrator {
	all := bridge.MultiObserver{s.registry, bridge.LogObserver{}}
	all = append(all, observers...)

	return bridge.NewOrchestrator(s.messenger, s.tracker,
		bridge.WithObserver(all),
		bridge.WithStatusTimeout(timeout),
	)
}

func (s *session) Close() {
	s.l1.Close()
	s.l2.Close()
}

// interruptible returns a context cancelled on Ctrl+C or SIGTERM
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
