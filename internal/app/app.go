// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 10:02:44 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/browser/cdp"
	"github.com/ternarybob/mfaflow/internal/browser/memory"
	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/interfaces"
	"github.com/ternarybob/mfaflow/internal/scenario"
	"github.com/ternarybob/mfaflow/internal/scheduler"
	"github.com/ternarybob/mfaflow/internal/storage/badger"
	"github.com/ternarybob/mfaflow/internal/surface"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage    interfaces.RunStorage // nil when history is disabled
	Surface    *surface.Server       // non-nil when the built-in fixture is served
	SurfaceURL string
	Runner     *scenario.Runner
	Scheduler  *scheduler.Scheduler
}

// New wires storage, the target surface and the scenario runner
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if cfg.HistoryEnabled() {
		storage, err := OpenRunStorage(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run history: %w", err)
		}
		app.Storage = storage
	}

	factory, err := app.initSurface()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize surface: %w", err)
	}

	runner, err := scenario.NewRunner(cfg, scenario.Options{
		SurfaceURL: app.SurfaceURL,
		Factory:    factory,
		Storage:    app.Storage,
	}, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize scenario runner: %w", err)
	}
	app.Runner = runner

	logger.Info().
		Str("provider", cfg.Browser.Provider).
		Str("surface", app.SurfaceURL).
		Bool("history", app.Storage != nil).
		Msg("Application initialization complete")

	return app, nil
}

// OpenRunStorage opens the Badger run history
func OpenRunStorage(cfg *common.Config, logger arbor.ILogger) (interfaces.RunStorage, error) {
	db, err := badger.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, err
	}
	return badger.NewRunStorage(db, logger), nil
}

// initSurface resolves the page under test and returns the matching provider factory
func (a *App) initSurface() (scenario.ProviderFactory, error) {
	cfg := a.Config

	if cfg.Browser.Provider == "memory" {
		a.SurfaceURL = memory.SurfaceURL
		opts := memory.SurfaceOptions{
			Login:            cfg.Fixture.Login,
			Password:         cfg.Fixture.Password,
			DisplayName:      cfg.Fixture.DisplayName,
			Code:             memory.DefaultSurfaceOptions().Code,
			EnabledPositions: cfg.Fixture.EnabledPositions,
			FieldCount:       cfg.Fixture.FieldCount,
		}
		return func(ctx context.Context) (interfaces.BrowsingProvider, func(), error) {
			p := memory.New()
			memory.ScriptLoginSurface(p, opts)
			return p, p.Close, nil
		}, nil
	}

	a.SurfaceURL = cfg.Surface.URL
	if a.SurfaceURL == "" {
		if err := a.StartSurface(); err != nil {
			return nil, err
		}
		a.SurfaceURL = a.Surface.URL()
	}

	logger := a.Logger
	browser := cfg.Browser
	return func(ctx context.Context) (interfaces.BrowsingProvider, func(), error) {
		p, err := cdp.New(browser, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}, nil
}

// StartSurface serves the built-in login fixture in the background
func (a *App) StartSurface() error {
	srv := surface.New(surface.AccountFromConfig(a.Config.Fixture), a.Logger)
	if err := srv.Listen(a.Config.Fixture.Host, a.Config.Fixture.Port); err != nil {
		return err
	}
	a.Surface = srv

	common.SafeGo(a.Logger, "surface", func() {
		if err := srv.Serve(); err != nil {
			a.Logger.Error().Err(err).Msg("Login surface stopped unexpectedly")
		}
	})
	return nil
}

// StartScheduler runs the scenario on the configured cron schedule
func (a *App) StartScheduler() error {
	if a.Config.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is not configured")
	}

	a.Scheduler = scheduler.New(func(ctx context.Context) error {
		_, err := a.Runner.Run(ctx)
		return err
	}, a.Config.RunTimeout(), a.Logger)

	return a.Scheduler.Start(a.Config.Schedule.Cron)
}

// Close stops background components and closes storage
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.Surface != nil {
		if err := a.Surface.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop login surface")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}

	return nil
}
