package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "op-bridge",
	Short: "A CLI for bridging ETH between Ethereum and an OP Stack chain",
	Long: `op-bridge moves ETH between L1 and an OP Stack L2 through the standard bridge
and follows each transfer until it is relayed on the other side. Withdrawals are
proven and finalized on L1 along the way.

Examples:
  op-bridge deposit 0.1
  op-bridge withdraw 0.05 --recipient 0x70997970C51812dc3A010C7d01b50e0d17dc79C8
  op-bridge balance
  op-bridge status 0x1234...abcd --direction withdraw --watch
  op-bridge serve --addr :8080`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		// background components log through the standard logger; keep it off the spinner
		if !verbose && cmd.Name() != serveCmd.Name() {
			log.SetOutput(io.Discard)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("network", "", "Network to use: goerli, sepolia, mainnet or custom")

	_ = viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
}

// exit is replaced in tests
var exit = os.Exit

// exitWith adapts a command body returning an exit code. The process exits only after
// the body returned, so its deferred cleanup has run.
func exitWith(run func(cmd *cobra.Command, args []string) int) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if code := run(cmd, args); code != 0 {
			exit(code)
		}
	}
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
