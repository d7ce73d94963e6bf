package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"op-bridge/config"
	"op-bridge/pkg/operation"
	"op-bridge/pkg/types"
)

var pendingOnly bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent bridge operations",
	Long: `List the deposits and withdrawals recorded in the local history file.
Finished operations are dropped after the configured retention.

Examples:
  op-bridge history
  op-bridge history --pending`,
	Args: cobra.NoArgs,
	Run:  exitWith(runHistory),
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only show operations that have not finished")
}

func runHistory(cmd *cobra.Command, args []string) int {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// history does not need a signing key or a connection
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		return 1
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		printError(err)
		return 1
	}
	registry, err := operation.NewRegistry(path, cfg.Retention)
	if err != nil {
		printError(err)
		return 1
	}

	ops := registry.List()
	if pendingOnly {
		ops = registry.Pending()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(ops, "", "  ")
		fmt.Println(string(jsonData))
		return 0
	}

	if len(ops) == 0 {
		fmt.Println("\nNo operations recorded.")
		return 0
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                        OPERATIONS")
	fmt.Println(strings.Repeat("=", 100))

	fmt.Printf("\n  %-10s %-9s %-12s %-22s %-20s %s\n", "ID", "DIRECTION", "AMOUNT", "STATUS", "SUBMITTED", "TX HASH")
	fmt.Println("  " + strings.Repeat("-", 96))
	for _, op := range ops {
		fmt.Printf("  %-10s %-9s %-12s %-31s %-20s %s\n",
			shortID(op.ID),
			op.Direction,
			op.Amount,
			getColoredStatus(string(op.Status)),
			op.SubmittedAt.Format("2006-01-02 15:04:05"),
			shortHash(op),
		)
		if op.Error != "" {
			fmt.Printf("  %s\n", color.RedString("  └ %s", op.Error))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	fmt.Printf("  %d operation(s), stored in %s\n\n", len(ops), registry.FilePath())
	return 0
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortHash(op types.BridgeOperation) string {
	hex := op.TxHash.Hex()
	return hex[:10] + "..." + hex[len(hex)-8:]
}
