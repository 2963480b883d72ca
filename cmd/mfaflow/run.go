package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mfaflow/internal/app"
)

var runCount int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the multi-factor login scenario once",
	Long:  `Opens a browsing session, drives the login flow and asserts the welcome text. Exits non-zero when any run fails.`,
	RunE:  runScenario,
}

func init() {
	runCmd.Flags().IntVarP(&runCount, "count", "n", 1, "number of consecutive runs")
}

func runScenario(cmd *cobra.Command, args []string) error {
	if runCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	failures := 0
	for i := 0; i < runCount && ctx.Err() == nil; i++ {
		record, err := application.Runner.Run(ctx)
		if err != nil {
			failures++
		}
		printRecord(cmd.OutOrStdout(), record)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed", failures, runCount)
	}
	return ctx.Err()
}
