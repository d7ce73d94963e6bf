package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"op-bridge/pkg/server"
	"op-bridge/pkg/types"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bridge over HTTP",
	Long: `Start an HTTP API that submits deposits and withdrawals, reports their progress
and serves the account balance on both layers. Operations run in the background
and are recorded in the history file.

Endpoints:
  GET  /state                    health check
  POST /deposit                  {"amount": "0.1", "recipient": "0x..."}
  POST /withdraw                 {"amount": "0.1", "recipient": "0x..."}
  GET  /operations               all recorded operations
  GET  /operations/{id}          one operation
  DELETE /operations/{id}        forget a finished operation
  POST /operations/resume        {"tx_hash": "0x...", "direction": "withdraw"}
  GET  /balance/{l1|l2}          latest balance snapshot
  POST /balance/refresh          query both layers again

Examples:
  op-bridge serve
  op-bridge serve --addr 127.0.0.1:9000 --network sepolia`,
	Args: cobra.NoArgs,
	Run:  exitWith(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, args []string) int {
	sess, err := connect(context.Background(), true)
	if err != nil {
		printError(err)
		return 1
	}
	defer sess.Close()

	addr := sess.cfg.ServerAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	log.Printf("[Server] network %s, account %s", sess.cfg.Network, sess.wallet.Address().Hex())
	log.Printf("[Server] history in %s (%d operations)", sess.registry.FilePath(), sess.registry.Count())

	sess.tracker.OnUpdate = func(snapshot types.BalanceSnapshot) {
		if snapshot.Err != "" {
			log.Printf("[Balance] %s: %s", snapshot.Layer, snapshot.Err)
			return
		}
		log.Printf("[Balance] %s: %s ETH", snapshot.Layer, snapshot.Amount)
	}

	srv := server.New(addr, sess.orchestrator(sess.cfg.StatusTimeout), sess.registry, sess.tracker)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go sess.tracker.Refresh(context.Background())

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- srv.ListenAndServe()
	}()

	select {
	case <-done:
		log.Print("[Server] stopping")
	case err := <-listenErr:
		if err != nil {
			log.Printf("[Server] error listening: %v", err)
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Server] shutdown error: %+v", err)
		return 1
	}
	log.Print("[Server] shutdown normal")
	return 0
}
