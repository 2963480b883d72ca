package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/browser/memory"
	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/models"
)

func memoryConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Browser.Provider = "memory"
	cfg.Browser.PollInterval = "5ms"
	cfg.Browser.WaitTimeout = "500ms"
	cfg.Browser.ScreenshotDir = ""
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "runs")
	return cfg
}

func TestApp_MemoryProviderRun(t *testing.T) {
	a, err := New(memoryConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, memory.SurfaceURL, a.SurfaceURL)
	assert.Nil(t, a.Surface, "memory provider needs no fixture server")

	record, err := a.Runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateLoggedIn, record.State)

	runs, err := a.Storage.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, record.ID, runs[0].ID)
}

func TestApp_HistoryDisabled(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.Badger.Path = ""

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Storage)
}

func TestApp_ServesFixtureWhenNoSurfaceURL(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Browser.Provider = "chromedp"
	cfg.Storage.Badger.Path = ""

	// The browser is only launched by a run, so wiring works without Chrome
	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Surface)
	assert.Equal(t, a.Surface.URL(), a.SurfaceURL)
	assert.Regexp(t, `^http://127\.0\.0\.1:\d+$`, a.SurfaceURL)
}

func TestApp_StartSchedulerRequiresCron(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.Badger.Path = ""

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.StartScheduler())

	a.Config.Schedule.Cron = "@every 1h"
	require.NoError(t, a.StartScheduler())
	assert.False(t, a.Scheduler.Stats().NextRun.IsZero())
}
