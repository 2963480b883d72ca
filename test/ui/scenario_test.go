package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/app"
	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/driver"
	"github.com/ternarybob/mfaflow/internal/models"
)

// uiConfig runs Chrome against the built-in fixture with history disabled
func uiConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Environment = "test"
	cfg.Browser.NoSandbox = true
	cfg.Browser.RemoteURL = getEnv("MFAFLOW_BROWSER_REMOTE_URL", "")
	cfg.Browser.SessionTimeout = "60s"
	cfg.Storage.Badger.Path = ""

	dir, err := screenshotDir()
	require.NoError(t, err)
	cfg.Browser.ScreenshotDir = dir
	return cfg
}

func TestScenario_MultiFactorLogin(t *testing.T) {
	requireBrowser(t)

	a, err := app.New(uiConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	record, err := a.Runner.Run(context.Background())
	require.NoError(t, err, "run %s failed at %s", record.ID, record.Step)

	assert.True(t, record.Passed)
	assert.Equal(t, models.StateLoggedIn, record.State)
	assert.Equal(t, "Welcome, Alice!", record.Welcome)
	assert.Empty(t, record.Screenshot)
}

func TestScenario_PositionBeyondPassword(t *testing.T) {
	requireBrowser(t)

	cfg := uiConfig(t)
	cfg.Fixture.FieldCount = 9
	cfg.Fixture.EnabledPositions = []int{1, 3, 5, 9}

	a, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	record, err := a.Runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrInvalidPosition))

	assert.False(t, record.Passed)
	assert.Equal(t, models.StateAborted, record.State)
	assert.Equal(t, models.StateAwaitingMaskedPassword, record.Step)
	assert.Equal(t, "InvalidPosition", record.ErrorKind)
	assert.NotEmpty(t, record.Screenshot, "failure screenshot is captured")
}

// TestSurface_CodeOpensInNewTab checks the page contract the scenario relies on,
// driving Chrome directly
func TestSurface_CodeOpensInNewTab(t *testing.T) {
	if findChrome() == "" {
		t.Skip("no local Chrome binary")
	}

	cfg := uiConfig(t)
	a, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	require.NoError(t, chromedp.Run(ctx,
		chromedp.EmulateViewport(1280, 900),
		chromedp.Navigate(a.SurfaceURL),
		chromedp.WaitVisible(cfg.Surface.LoginInput, chromedp.ByQuery),
		chromedp.SendKeys(cfg.Surface.LoginInput, cfg.Scenario.Login, chromedp.ByQuery),
		chromedp.Click(cfg.Surface.LoginNext, chromedp.ByQuery),
		chromedp.WaitVisible(cfg.Surface.CodeLink, chromedp.ByQuery),
	))

	newTab := chromedp.WaitNewTarget(ctx, func(info *target.Info) bool {
		return info.URL != "" && info.Type == "page"
	})
	require.NoError(t, chromedp.Run(ctx, chromedp.Click(cfg.Surface.CodeLink, chromedp.ByQuery)))

	var targetID target.ID
	select {
	case targetID = <-newTab:
	case <-ctx.Done():
		t.Fatal("code tab did not open")
	}

	tabCtx, cancelTab := chromedp.NewContext(ctx, chromedp.WithTargetID(targetID))
	defer cancelTab()

	var code string
	require.NoError(t, chromedp.Run(tabCtx,
		chromedp.WaitVisible(cfg.Surface.CodeValue, chromedp.ByQuery),
	))
	if err := TakeScreenshot(tabCtx, "code-tab"); err != nil {
		t.Logf("Warning: Failed to take screenshot: %v", err)
	}
	require.NoError(t, chromedp.Run(tabCtx, chromedp.Text(cfg.Surface.CodeValue, &code, chromedp.ByQuery)))
	assert.Regexp(t, `^\s*\d{6}\s*$`, code)
}
