package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "chromedp", cfg.Browser.Provider)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 2*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, cfg.SessionTimeout(), cfg.RunTimeout())
	assert.True(t, cfg.HistoryEnabled())
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[browser]
wait_timeout = "5s"
poll_interval = "50ms"

[scenario]
login = "bob@example.com"
`)
	override := writeConfig(t, "override.toml", `
[browser]
wait_timeout = "3s"

[fixture]
enabled_positions = [2, 4]
`)

	cfg, err := LoadFromFiles(base, "", override)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.WaitTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, "bob@example.com", cfg.Scenario.Login)
	assert.Equal(t, []int{2, 4}, cfg.Fixture.EnabledPositions)
	// Untouched sections keep their defaults
	assert.Equal(t, "#email", cfg.Surface.LoginInput)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := writeConfig(t, "bad.toml", "[browser\nheadless = ")
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)
}

func TestEnvAndFlagPriority(t *testing.T) {
	path := writeConfig(t, "file.toml", `
[surface]
url = "http://from-file"

[logging]
level = "warn"
`)
	t.Setenv("MFAFLOW_SURFACE_URL", "http://from-env")
	t.Setenv("MFAFLOW_LOG_LEVEL", "debug")
	t.Setenv("MFAFLOW_BROWSER_HEADLESS", "not-a-bool")
	t.Setenv("MFAFLOW_STORAGE_PATH", "")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env", cfg.Surface.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Browser.Headless, "unparseable bool leaves the value alone")
	assert.False(t, cfg.HistoryEnabled(), "an empty storage path disables history")

	ApplyFlagOverrides(cfg, FlagOverrides{
		SurfaceURL: "http://from-flag",
		Provider:   "memory",
		Headful:    true,
	})
	assert.Equal(t, "http://from-flag", cfg.Surface.URL)
	assert.Equal(t, "memory", cfg.Browser.Provider)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level, "empty flag values do not override")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown provider", func(c *Config) { c.Browser.Provider = "selenium" }},
		{"bad duration", func(c *Config) { c.Browser.WaitTimeout = "soon" }},
		{"negative duration", func(c *Config) { c.Browser.PollInterval = "-1s" }},
		{"empty locator", func(c *Config) { c.Surface.CodeValue = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every tuesday" }},
		{"position beyond password", func(c *Config) { c.Fixture.EnabledPositions = []int{1, 9} }},
		{"zero position", func(c *Config) { c.Fixture.EnabledPositions = []int{0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_PositionBeyondPasswordAllowedWithFieldCount(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Fixture.EnabledPositions = []int{1, 9}
	cfg.Fixture.FieldCount = 9
	assert.NoError(t, cfg.Validate())
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 */5 * * * *"))
	assert.NoError(t, ValidateSchedule("@every 30s"))
	assert.Error(t, ValidateSchedule("*/5 * * * *"), "five fields lack seconds")
}
