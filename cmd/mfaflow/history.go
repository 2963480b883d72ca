package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mfaflow/internal/app"
	"github.com/ternarybob/mfaflow/internal/interfaces"
)

var (
	historyLimit  int
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded scenario runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(ctx context.Context, storage interfaces.RunStorage) error {
			runs, err := storage.ListRuns(ctx, historyLimit)
			if err != nil {
				return err
			}
			return newPrinter(historyOutput, cmd.OutOrStdout()).Runs(runs)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(ctx context.Context, storage interfaces.RunStorage) error {
			run, err := storage.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			return newPrinter(historyOutput, cmd.OutOrStdout()).Run(run)
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(ctx context.Context, storage interfaces.RunStorage) error {
			if err := storage.DeleteRun(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

var historyCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(ctx context.Context, storage interfaces.RunStorage) error {
			n, err := storage.CountRuns(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

func init() {
	historyCmd.PersistentFlags().StringVarP(&historyOutput, "output", "o", "text",
		"output format (text, json, yaml)")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to list (0 = all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyCountCmd)
}

// withHistory opens run storage without starting the surface or a browser
func withHistory(fn func(ctx context.Context, storage interfaces.RunStorage) error) error {
	if !config.HistoryEnabled() {
		return fmt.Errorf("run history is disabled (storage.badger.path is empty)")
	}
	storage, err := app.OpenRunStorage(config, logger)
	if err != nil {
		return err
	}
	defer storage.Close()
	return fn(context.Background(), storage)
}
