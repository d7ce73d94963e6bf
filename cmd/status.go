package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"op-bridge/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
	directionFlag string
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a deposit or withdrawal",
	Long: `Check where the cross-chain message of a bridge transaction is, by the hash of
the transaction that started it.

Examples:
  op-bridge status 0x1234...abcd --direction deposit
  op-bridge status 0x1234...abcd --direction withdraw --watch
  op-bridge status 0x1234...abcd --direction withdraw --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  exitWith(runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&directionFlag, "direction", "d", "", "deposit or withdraw (REQUIRED)")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	_ = statusCmd.MarkFlagRequired("direction")
}

func parseTxHash(arg string) (common.Hash, error) {
	raw, err := hexutil.Decode(arg)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash: %s", arg)
	}
	return common.BytesToHash(raw), nil
}

func runStatus(cmd *cobra.Command, args []string) int {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	txHash, err := parseTxHash(args[0])
	if err != nil {
		printError(err)
		return 1
	}
	direction, ok := types.ParseDirection(directionFlag)
	if !ok {
		printError(fmt.Errorf("direction must be deposit or withdraw, got %q", directionFlag))
		return 1
	}

	ctx, stop := interruptible()
	defer stop()

	sess, err := connect(ctx, jsonOutput)
	if err != nil {
		printError(err)
		return 1
	}
	defer sess.Close()

	check := func() (types.MessageStatus, error) {
		return sess.messenger.MessageStatus(ctx, txHash, direction)
	}

	if watchStatus {
		return watchMessageStatus(ctx, check, txHash, direction, jsonOutput)
	}
	return checkMessageStatus(check, txHash, direction, jsonOutput)
}

func checkMessageStatus(check func() (types.MessageStatus, error), txHash common.Hash, direction types.Direction, jsonOutput bool) int {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking message status..."
		s.Start()
	}

	status, err := check()
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		return 1
	}

	if jsonOutput {
		output := map[string]interface{}{
			"tx_hash":   txHash.Hex(),
			"direction": direction,
			"status":    status.String(),
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status, txHash, direction)
	}
	return 0
}

func watchMessageStatus(ctx context.Context, check func() (types.MessageStatus, error), txHash common.Hash, direction types.Direction, jsonOutput bool) int {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		return 1
	}

	fmt.Printf("\nWatching %s status (Transaction: %s)\n", direction, color.CyanString(txHash.Hex()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first, then periodically until the message is relayed
	for {
		status, err := check()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return 0
			}
			color.Red("Error: %v", err)
		} else {
			displayStatus(status, txHash, direction)
			if status == types.MessageRelayed || status == types.MessageFailedL1ToL2 {
				return 0
			}
		}
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C:
		}
	}
}

func displayStatus(status types.MessageStatus, txHash common.Hash, direction types.Direction) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        %s STATUS", strings.ToUpper(string(direction)))
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Transaction:   %s\n", color.HiBlackString(txHash.Hex()))
	fmt.Printf("  Status:        %s\n", getColoredStatus(status.String()))
	fmt.Printf("  Checked At:    %s\n", time.Now().Format("2006-01-02 15:04:05"))

	if hint := statusHint(status, direction); hint != "" {
		fmt.Printf("  Next:          %s\n", hint)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func statusHint(status types.MessageStatus, direction types.Direction) string {
	switch status {
	case types.MessageUnconfirmedL1ToL2:
		return "waiting for the deposit to be relayed on L2"
	case types.MessageStateRootNotPublished:
		return "waiting for the L2 output covering the withdrawal"
	case types.MessageReadyToProve:
		return fmt.Sprintf("run 'op-bridge resume <tx-hash> --direction %s' to prove and finalize", direction)
	case types.MessageInChallengePeriod:
		return "waiting for the challenge period to end"
	case types.MessageReadyForRelay:
		return fmt.Sprintf("run 'op-bridge resume <tx-hash> --direction %s' to finalize", direction)
	default:
		return ""
	}
}
