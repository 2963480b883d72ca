// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 9:40:18 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

// Package scenario runs the multi-factor login end to end and records the outcome.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/driver"
	"github.com/ternarybob/mfaflow/internal/flow"
	"github.com/ternarybob/mfaflow/internal/interfaces"
	"github.com/ternarybob/mfaflow/internal/models"
)

// ErrWelcomeMismatch is returned when the flow completes but greets with unexpected text
var ErrWelcomeMismatch = errors.New("welcome mismatch")

// ProviderFactory opens a fresh browsing session for one run and returns its release func
type ProviderFactory func(ctx context.Context) (interfaces.BrowsingProvider, func(), error)

// Options configures a Runner
type Options struct {
	SurfaceURL string
	Factory    ProviderFactory
	Storage    interfaces.RunStorage // nil disables history
}

// Runner executes the scenario with literal inputs from configuration
type Runner struct {
	config   *common.Config
	locators flow.Locators
	opts     Options
	logger   arbor.ILogger
}

// NewRunner validates the surface locators and creates a runner
func NewRunner(config *common.Config, opts Options, logger arbor.ILogger) (*Runner, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("scenario runner requires a provider factory")
	}
	if opts.SurfaceURL == "" {
		return nil, fmt.Errorf("scenario runner requires a surface URL")
	}
	locators, err := flow.LocatorsFromConfig(config.Surface)
	if err != nil {
		return nil, err
	}
	return &Runner{
		config:   config,
		locators: locators,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Run executes one scenario run. The returned record is never nil; err is non-nil when the
// run did not pass.
func (r *Runner) Run(ctx context.Context) (*models.RunRecord, error) {
	record := &models.RunRecord{
		ID:         common.NewRunID(),
		Scenario:   r.config.Scenario.Name,
		SurfaceURL: r.opts.SurfaceURL,
		State:      models.StateAwaitingLogin,
		StartedAt:  time.Now(),
	}
	logger := r.logger.WithCorrelationId(record.ID)

	logger.Info().
		Str("scenario", record.Scenario).
		Str("surface", record.SurfaceURL).
		Msg("Scenario run started")

	ctx, cancel := context.WithTimeout(ctx, r.config.SessionTimeout())
	defer cancel()

	welcome, state, err := r.execute(ctx, record, logger)
	record.State = state
	record.Welcome = welcome

	if err == nil && welcome != r.config.Scenario.ExpectedWelcome {
		err = fmt.Errorf("%w: got %q, want %q", ErrWelcomeMismatch, welcome, r.config.Scenario.ExpectedWelcome)
	}

	record.FinishedAt = time.Now()
	record.Duration = record.FinishedAt.Sub(record.StartedAt)
	record.Passed = err == nil
	if err != nil {
		record.Error = err.Error()
		record.ErrorKind = Kind(err)
		if step, ok := flow.FailedStep(err); ok {
			record.Step = step
		}
	}

	if r.opts.Storage != nil {
		if saveErr := r.opts.Storage.SaveRun(context.WithoutCancel(ctx), record); saveErr != nil {
			logger.Warn().Err(saveErr).Msg("Failed to save run record")
		}
	}

	if err != nil {
		logger.Error().
			Str("state", record.State.String()).
			Str("step", record.Step.String()).
			Str("kind", record.ErrorKind).
			Dur("duration", record.Duration).
			Err(err).
			Msg("Scenario run failed")
		return record, err
	}

	logger.Info().
		Str("welcome", record.Welcome).
		Dur("duration", record.Duration).
		Msg("Scenario run passed")
	return record, nil
}

func (r *Runner) execute(ctx context.Context, record *models.RunRecord, logger arbor.ILogger) (string, models.FlowState, error) {
	provider, release, err := r.opts.Factory(ctx)
	if err != nil {
		return "", models.StateAborted, fmt.Errorf("failed to open browsing session: %w", err)
	}
	defer release()

	d := driver.New(provider, r.config.PollInterval(), logger)
	if err := d.Navigate(ctx, r.opts.SurfaceURL); err != nil {
		return "", models.StateAborted, fmt.Errorf("failed to load surface %s: %w", r.opts.SurfaceURL, err)
	}

	o := flow.NewOrchestrator(&flow.Session{
		ID:       record.ID,
		Driver:   d,
		Locators: r.locators,
		Timeout:  r.config.WaitTimeout(),
		Logger:   logger,
	})

	welcome, err := o.Run(ctx, r.config.Scenario.Login, r.config.Scenario.Password)
	if err != nil || welcome != r.config.Scenario.ExpectedWelcome {
		record.Screenshot = r.screenshot(ctx, provider, record.ID, logger)
	}
	return welcome, o.State(), err
}

// screenshot saves the active context to the screenshot directory when the provider supports it
func (r *Runner) screenshot(ctx context.Context, provider interfaces.BrowsingProvider, runID string, logger arbor.ILogger) string {
	dir := r.config.Browser.ScreenshotDir
	shooter, ok := provider.(interfaces.ScreenshotProvider)
	if dir == "" || !ok {
		return ""
	}

	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	buf, err := shooter.Screenshot(shotCtx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to capture failure screenshot")
		return ""
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to create screenshots directory")
		return ""
	}
	path := filepath.Join(dir, runID+".png")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to save screenshot")
		return ""
	}

	logger.Info().Str("path", path).Msg("Failure screenshot saved")
	return path
}

// Kind names the failure class of err for run records
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWelcomeMismatch):
		return "WelcomeMismatch"
	case errors.Is(err, flow.ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	}
	return driver.Kind(err)
}
