package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"op-bridge/pkg/types"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the ETH balance on both layers",
	Long: `Show the ETH balance of the configured account on L1 and L2. Each layer is
queried on its own, so a failing node only affects its own line.

Examples:
  op-bridge balance
  op-bridge balance --network sepolia --json`,
	Args: cobra.NoArgs,
	Run:  exitWith(runBalance),
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) int {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := interruptible()
	defer stop()

	sess, err := connect(ctx, jsonOutput)
	if err != nil {
		printError(err)
		return 1
	}
	defer sess.Close()

	sess.tracker.Refresh(ctx)

	if jsonOutput {
		output := map[string]interface{}{
			"address": sess.wallet.Address().Hex(),
			"l1":      sess.tracker.Snapshot(types.L1),
			"l2":      sess.tracker.Snapshot(types.L2),
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return 0
	}

	displayBalances(sess)
	return 0
}

func displayBalances(sess *session) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      BALANCES")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Account:  %s\n", color.CyanString(sess.wallet.Address().Hex()))
	for _, layer := range []types.Layer{types.L1, types.L2} {
		fmt.Printf("  %s:       %s\n", strings.ToUpper(string(layer)), formatBalance(sess.tracker.Snapshot(layer)))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func formatBalance(snapshot *types.BalanceSnapshot) string {
	switch snapshot.State() {
	case types.BalanceLoading:
		return color.HiBlackString("loading...")
	case types.BalanceError:
		if snapshot.Amount != "" {
			return fmt.Sprintf("%s ETH %s", snapshot.Amount, color.RedString("(stale: %s)", snapshot.Err))
		}
		return color.RedString("%s", snapshot.Err)
	default:
		return snapshot.Amount + " " + color.YellowString("ETH")
	}
}
