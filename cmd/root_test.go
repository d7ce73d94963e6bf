package cmd

import (
	"fmt"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestExitWithRunsCleanupFirst(t *testing.T) {
	var events []string
	exit = func(code int) { events = append(events, fmt.Sprintf("exit %d", code)) }
	defer func() { exit = os.Exit }()

	failing := exitWith(func(cmd *cobra.Command, args []string) int {
		defer func() { events = append(events, "close") }()
		return 1
	})
	failing(&cobra.Command{}, nil)
	assert.Equal(t, []string{"close", "exit 1"}, events)

	events = nil
	succeeding := exitWith(func(cmd *cobra.Command, args []string) int {
		defer func() { events = append(events, "close") }()
		return 0
	})
	succeeding(&cobra.Command{}, nil)
	assert.Equal(t, []string{"close"}, events)
}
