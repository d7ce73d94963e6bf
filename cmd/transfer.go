package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/parser"
	"op-bridge/pkg/types"
)

var (
	recipientAddr string
	statusTimeout time.Duration
	noConfirm     bool
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Bridge ETH from L1 to L2",
	Long: `Deposit ETH into the L2 through the L1 standard bridge and wait until it is
relayed on L2.

Examples:
  op-bridge deposit 0.1
  op-bridge deposit 1.5ETH --recipient 0x70997970C51812dc3A010C7d01b50e0d17dc79C8
  op-bridge deposit 0.01 --network sepolia --yes`,
	Args: cobra.ExactArgs(1),
	Run: exitWith(func(cmd *cobra.Command, args []string) int {
		return runTransfer(cmd, types.Deposit, args[0])
	}),
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Bridge ETH from L2 to L1",
	Long: `Withdraw ETH from the L2 through the L2 standard bridge. The withdrawal is
proven once its state root is published, then finalized on L1 when the challenge
period is over. This takes about a week on public networks; use --timeout to bound
each wait and 'op-bridge resume' to pick an interrupted withdrawal back up.

Examples:
  op-bridge withdraw 0.05
  op-bridge withdraw 0.05 --recipient 0x70997970C51812dc3A010C7d01b50e0d17dc79C8
  op-bridge withdraw 0.05 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	Run: exitWith(func(cmd *cobra.Command, args []string) int {
		return runTransfer(cmd, types.Withdraw, args[0])
	}),
}

func init() {
	for _, c := range []*cobra.Command{depositCmd, withdrawCmd} {
		rootCmd.AddCommand(c)

		c.Flags().StringVar(&recipientAddr, "recipient", "", "Receive the ETH at this address instead of the sender")
		c.Flags().DurationVar(&statusTimeout, "timeout", -1, "Give up waiting for a single status after this long (0 waits forever, default from config)")
		c.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	}
}

func runTransfer(cmd *cobra.Command, direction types.Direction, amountArg string) int {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	amount, err := parser.NormalizeAmount(amountArg)
	if err != nil {
		printError(err)
		return 1
	}

	var opts []bridge.OperationOption
	if recipientAddr != "" {
		if err := ethav.Validate(recipientAddr); err != nil {
			printError(fmt.Errorf("invalid recipient address %s: %v", recipientAddr, err))
			return 1
		}
		opts = append(opts, bridge.WithRecipient(common.HexToAddress(recipientAddr)))
	}

	ctx, stop := interruptible()
	defer stop()

	sess, err := connect(ctx, jsonOutput)
	if err != nil {
		printError(err)
		return 1
	}
	defer sess.Close()

	timeout := sess.cfg.StatusTimeout
	if statusTimeout >= 0 {
		timeout = statusTimeout
	}

	if !jsonOutput {
		displayTransfer(sess, direction, amount)

		if !noConfirm && !confirmTransfer(direction) {
			fmt.Printf("\n%s cancelled.\n", titleDirection(direction))
			return 0
		}
	}

	var observers []bridge.Observer
	p := newProgress()
	if !jsonOutput {
		observers = append(observers, p)
		p.spinner.Suffix = " Sending transaction..."
		p.spinner.Start()
	}

	orchestrator := sess.orchestrator(timeout, observers...)

	var op *types.BridgeOperation
	if direction == types.Withdraw {
		op, err = orchestrator.Withdraw(ctx, amount, opts...)
	} else {
		op, err = orchestrator.Deposit(ctx, amount, opts...)
	}
	p.Stop()

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(op, "", "  ")
		fmt.Println(string(jsonData))
		if err != nil {
			return 1
		}
		return 0
	}

	if err != nil {
		printError(err)
		if op != nil && op.TxHash != (common.Hash{}) {
			fmt.Println("You can pick this transfer back up using:")
			color.Cyan("  op-bridge resume %s --direction %s\n", op.TxHash.Hex(), direction)
		}
		return 1
	}

	displayBalances(sess)
	printSuccess(fmt.Sprintf("%s of %s ETH complete.", titleDirection(direction), op.Amount))
	return 0
}

func displayTransfer(sess *session, direction types.Direction, amount string) {
	from, to := "L1", "L2"
	if direction == types.Withdraw {
		from, to = "L2", "L1"
	}
	recipient := sess.wallet.Address().Hex()
	if recipientAddr != "" {
		recipient = common.HexToAddress(recipientAddr).Hex()
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     %s", strings.ToUpper(string(direction)))
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Network:     %s\n", sess.cfg.Network)
	fmt.Printf("  Amount:      %s %s\n", amount, color.YellowString("ETH"))
	fmt.Printf("  Route:       %s -> %s\n", from, to)
	fmt.Printf("  Sender:      %s\n", color.CyanString(sess.wallet.Address().Hex()))
	fmt.Printf("  Recipient:   %s\n", color.CyanString(recipient))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirmTransfer(direction types.Direction) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\nProceed with %s? (y/N): ", direction)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
