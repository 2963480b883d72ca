package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple --config flags supported
	envFile     string
	flags       common.FlagOverrides

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "mfaflow",
	Short: "Multi-factor login scenario runner",
	Long: `mfaflow drives a multi-step, multi-factor login through a real browser:
login form, one-time code read from a secondary tab, masked password entry
and welcome text assertion.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil,
		"configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"dotenv file loaded before configuration (missing file is ignored)")
	rootCmd.PersistentFlags().StringVar(&flags.SurfaceURL, "surface-url", "",
		"URL of the login surface (empty serves the built-in fixture)")
	rootCmd.PersistentFlags().StringVar(&flags.Provider, "provider", "",
		"browsing provider: chromedp or memory")
	rootCmd.PersistentFlags().IntVar(&flags.FixturePort, "fixture-port", 0,
		"port for the built-in fixture (0 picks a free port)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "",
		"log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flags.Headful, "headful", false,
		"show the browser window")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(surfaceCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(historyCmd)
}

// setup resolves configuration and the logger.
// Order: .env -> defaults -> file1 -> file2 -> ... -> env -> CLI flags.
func setup(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, candidate := range []string{"mfaflow.toml", "deployments/local/mfaflow.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	cfg, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}
	common.ApplyFlagOverrides(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}
	config = cfg

	logger = common.InitLogger(config)
	common.InstallCrashHandler(config.Logging.Dir)
	common.PrintBanner(common.GetVersion())

	logger.Debug().
		Strs("config_files", configFiles).
		Str("provider", config.Browser.Provider).
		Str("surface_url", config.Surface.URL).
		Str("log_level", config.Logging.Level).
		Bool("history", config.HistoryEnabled()).
		Msg("Resolved configuration")

	return nil
}
