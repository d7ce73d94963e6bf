package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/types"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [tx-hash]",
	Short: "Pick an interrupted deposit or withdrawal back up",
	Long: `Follow a bridge transaction that was already sent until it is relayed, proving
and finalizing withdrawals on the way. Without a hash, every unfinished operation in
the local history is resumed one after another.

Examples:
  op-bridge resume 0x1234...abcd --direction withdraw
  op-bridge resume`,
	Args: cobra.MaximumNArgs(1),
	Run:  exitWith(runResume),
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().StringVarP(&directionFlag, "direction", "d", "", "deposit or withdraw (required with a hash)")
	resumeCmd.Flags().DurationVar(&statusTimeout, "timeout", -1, "Give up waiting for a single status after this long (0 waits forever, default from config)")
}

type resumeTarget struct {
	direction types.Direction
	txHash    string
	previous  *types.BridgeOperation // recorded run, nil for a hash given on the command line
}

func runResume(cmd *cobra.Command, args []string) int {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := interruptible()
	defer stop()

	sess, err := connect(ctx, jsonOutput)
	if err != nil {
		printError(err)
		return 1
	}
	defer sess.Close()

	var targets []resumeTarget
	if len(args) == 1 {
		direction, ok := types.ParseDirection(directionFlag)
		if !ok {
			printError(fmt.Errorf("--direction must be deposit or withdraw"))
			return 1
		}
		targets = append(targets, resumeTarget{direction: direction, txHash: args[0]})
	} else {
		for _, op := range sess.registry.Pending() {
			op := op
			targets = append(targets, resumeTarget{direction: op.Direction, txHash: op.TxHash.Hex(), previous: &op})
		}
		if len(targets) == 0 {
			if jsonOutput {
				fmt.Println("[]")
			} else {
				fmt.Println("\nNo unfinished operations found.")
			}
			return 0
		}
	}

	timeout := sess.cfg.StatusTimeout
	if statusTimeout >= 0 {
		timeout = statusTimeout
	}

	var (
		results []*types.BridgeOperation
		failed  int
	)
	for i, target := range targets {
		txHash, err := parseTxHash(target.txHash)
		if err != nil {
			printError(err)
			return 1
		}

		var observers []bridge.Observer
		p := newProgress()
		if !jsonOutput {
			fmt.Printf("\n[%d/%d] Resuming %s %s\n", i+1, len(targets), target.direction, color.CyanString(txHash.Hex()))
			observers = append(observers, p)
			p.spinner.Suffix = " Checking message status..."
			p.spinner.Start()
		}

		var opts []bridge.OperationOption
		if target.previous != nil {
			opts = append(opts, bridge.WithPrevious(*target.previous))
		}

		started := time.Now()
		op, err := sess.orchestrator(timeout, observers...).Resume(ctx, target.direction, txHash, opts...)
		p.Stop()
		results = append(results, op)

		if err != nil {
			failed++
			if !jsonOutput {
				printError(err)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if !jsonOutput {
			color.Green("✓ Done in %.0f seconds", time.Since(started).Seconds())
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayBalances(sess)
	}

	if failed > 0 {
		return 1
	}
	if !jsonOutput {
		printSuccess(fmt.Sprintf("Resumed %d operation(s).", len(results)))
	}
	return 0
}
