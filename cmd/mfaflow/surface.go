package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/surface"
)

var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Serve the built-in login surface",
	Long:  `Serves the login fixture so the scenario (or a person) can be pointed at it. Press Ctrl+C to stop.`,
	RunE:  runSurface,
}

func runSurface(cmd *cobra.Command, args []string) error {
	srv := surface.New(surface.AccountFromConfig(config.Fixture), logger)
	if err := srv.Listen(config.Fixture.Host, config.Fixture.Port); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	common.SafeGo(logger, "surface", func() {
		errChan <- srv.Serve()
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Login surface running on %s\nPress Ctrl+C to stop\n", srv.URL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-errChan:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
