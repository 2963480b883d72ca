package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mfaflow/internal/app"
	"github.com/ternarybob/mfaflow/internal/common"
)

var scheduleCron string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scenario periodically",
	Long:  `Runs the scenario on a six-field cron schedule (seconds first) until interrupted. Overlapping runs are skipped.`,
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron expression (overrides schedule.cron)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if scheduleCron != "" {
		if err := common.ValidateSchedule(scheduleCron); err != nil {
			return err
		}
		config.Schedule.Cron = scheduleCron
	}

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if err := application.StartScheduler(); err != nil {
		return err
	}

	logger.Info().
		Str("cron", config.Schedule.Cron).
		Str("surface", application.SurfaceURL).
		Msg("Scheduler ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	stats := application.Scheduler.Stats()
	logger.Info().
		Int("runs", stats.Runs).
		Int("failures", stats.Failures).
		Int("skipped", stats.Skipped).
		Msg("Scheduler stopped")
	return nil
}
