package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"op-bridge/pkg/types"
)

// progress prints each transition and keeps a spinner running while waiting for the next
type progress struct {
	spinner *spinner.Spinner
}

func newProgress() *progress {
	return &progress{spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond)}
}

func (p *progress) OnTransition(op types.BridgeOperation, t types.Transition) {
	p.spinner.Stop()

	switch t.Status {
	case types.StatusSubmitted:
		color.Green("\n✓ Transaction sent on %s", strings.ToUpper(string(op.Direction.SourceLayer())))
		fmt.Printf("  Transaction Hash: %s\n", color.CyanString(op.TxHash.Hex()))
	case types.StatusRelayed:
		color.Green("\n✓ %s relayed", titleDirection(op.Direction))
		fmt.Printf("  Total time: %.0f seconds\n", t.Elapsed.Seconds())
		return
	case types.StatusFailed:
		color.Red("\n✗ %s failed after %.0f seconds", titleDirection(op.Direction), t.Elapsed.Seconds())
		return
	default:
		color.Green("\n✓ %s", milestoneName(t.Status))
		fmt.Printf("  Time so far: %.0f seconds\n", t.Elapsed.Seconds())
	}

	if next := waitingFor(op.Direction, t.Status); next != "" {
		p.spinner.Suffix = " " + next
		p.spinner.Start()
	}
}

// Stop clears the spinner when the operation ends without a transition
func (p *progress) Stop() {
	p.spinner.Stop()
}

func titleDirection(direction types.Direction) string {
	if direction == types.Withdraw {
		return "Withdrawal"
	}
	return "Deposit"
}

func milestoneName(status types.OperationStatus) string {
	switch status {
	case types.StatusInChallengePeriod:
		return "Withdrawal proven, challenge period started"
	case types.StatusReadyForRelay:
		return "Challenge period over, ready for relay"
	case types.StatusFinalizing:
		return "Finalizing on L1"
	default:
		return string(status)
	}
}

func waitingFor(direction types.Direction, status types.OperationStatus) string {
	switch status {
	case types.StatusSubmitted:
		if direction == types.Withdraw {
			return "Waiting for the state root to be published and proving the withdrawal..."
		}
		return "Waiting for the deposit to be relayed on L2..."
	case types.StatusInChallengePeriod:
		return "Waiting for the challenge period to end..."
	case types.StatusFinalizing:
		return "Sending the finalize transaction..."
	default:
		return ""
	}
}

func getColoredStatus(status string) string {
	upper := strings.ToUpper(status)

	switch status {
	case string(types.StatusRelayed), types.MessageRelayed.String():
		return color.GreenString(upper)
	case string(types.StatusFailed), types.MessageFailedL1ToL2.String():
		return color.RedString(upper)
	case string(types.StatusReadyForRelay), types.MessageReadyForRelay.String(), types.MessageReadyToProve.String():
		return color.CyanString(upper)
	default:
		return color.YellowString(upper)
	}
}
