package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment" validate:"oneof=development production dev prod test"`
	Browser     BrowserConfig  `toml:"browser"`
	Surface     SurfaceConfig  `toml:"surface"`
	Scenario    ScenarioConfig `toml:"scenario"`
	Fixture     FixtureConfig  `toml:"fixture"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Schedule    ScheduleConfig `toml:"schedule"`
}

// BrowserConfig controls how the browsing session is allocated and how long waits may take
type BrowserConfig struct {
	Provider       string `toml:"provider" validate:"oneof=chromedp memory"` // "memory" runs against the scripted in-process surface
	Headless       bool   `toml:"headless"`
	DisableGPU     bool   `toml:"disable_gpu"`
	NoSandbox      bool   `toml:"no_sandbox"`
	WindowWidth    int    `toml:"window_width" validate:"min=320"`
	WindowHeight   int    `toml:"window_height" validate:"min=240"`
	ExecPath       string `toml:"exec_path"`       // Chrome binary override (empty = chromedp discovery)
	RemoteURL      string `toml:"remote_url"`      // DevTools websocket URL; when set no local Chrome is launched
	WaitTimeout    string `toml:"wait_timeout"`    // Bounded wait for elements and new tabs (default: "10s")
	PollInterval   string `toml:"poll_interval"`   // Pace of readiness polling (default: "100ms")
	SessionTimeout string `toml:"session_timeout"` // Ceiling for one whole scenario run (default: "2m")
	ScreenshotDir  string `toml:"screenshot_dir"`  // Failure screenshots (empty = disabled)
}

// SurfaceConfig describes the page under test: where it lives and how its controls are located.
// Locator values accept "id:x", "attr:name=value", "css:selector" or a bare CSS selector.
type SurfaceConfig struct {
	URL               string `toml:"url"` // Empty = serve the built-in fixture and point at it
	LoginInput        string `toml:"login_input" validate:"required"`
	LoginNext         string `toml:"login_next" validate:"required"`
	CodeLink          string `toml:"code_link" validate:"required"`
	CodeValue         string `toml:"code_value" validate:"required"`
	CodeInput         string `toml:"code_input" validate:"required"`
	CodeNext          string `toml:"code_next" validate:"required"`
	MaskedInputs      string `toml:"masked_inputs" validate:"required"`
	PositionAttribute string `toml:"position_attribute" validate:"required"`
	LoginButton       string `toml:"login_button" validate:"required"`
	Welcome           string `toml:"welcome" validate:"required"`
}

// ScenarioConfig holds the literal inputs of the scenario and its expected outcome
type ScenarioConfig struct {
	Name            string `toml:"name" validate:"required"`
	Login           string `toml:"login" validate:"required"`
	Password        string `toml:"password" validate:"required"`
	ExpectedWelcome string `toml:"expected_welcome" validate:"required"`
}

// FixtureConfig configures the built-in target surface
type FixtureConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port" validate:"min=0,max=65535"` // 0 = any free port
	Login            string `toml:"login" validate:"required"`
	Password         string `toml:"password" validate:"required"`
	DisplayName      string `toml:"display_name" validate:"required"`
	EnabledPositions []int  `toml:"enabled_positions" validate:"dive,min=1"`
	FieldCount       int    `toml:"field_count" validate:"min=0"` // 0 = one field per password character
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents run history storage. An empty path disables history.
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
	Dir        string   `toml:"dir"` // Log file directory (default: "./logs")
}

// ScheduleConfig configures periodic scenario runs
type ScheduleConfig struct {
	Cron       string `toml:"cron"`        // Six-field cron expression (with seconds); empty = disabled
	RunTimeout string `toml:"run_timeout"` // Per-run ceiling (default: session timeout)
}

// NewDefaultConfig creates a configuration with default values.
// Surface locators and scenario inputs match the bundled fixture.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Browser: BrowserConfig{
			Provider:       "chromedp",
			Headless:       true,
			DisableGPU:     true,
			NoSandbox:      false,
			WindowWidth:    1920,
			WindowHeight:   1080,
			WaitTimeout:    "10s",
			PollInterval:   "100ms",
			SessionTimeout: "2m",
			ScreenshotDir:  "./results/screenshots",
		},
		Surface: SurfaceConfig{
			LoginInput:        "#email",
			LoginNext:         "#next-btn",
			CodeLink:          "#open-code-link",
			CodeValue:         "#code-value",
			CodeInput:         "#code",
			CodeNext:          "#code-next-btn",
			MaskedInputs:      "input.masked-input",
			PositionAttribute: "data-pos",
			LoginButton:       "#login-btn",
			Welcome:           "#welcome",
		},
		Scenario: ScenarioConfig{
			Name:            "multifactor-login",
			Login:           "alice@example.com",
			Password:        "P@ssw0rd",
			ExpectedWelcome: "Welcome, Alice!",
		},
		Fixture: FixtureConfig{
			Host:             "127.0.0.1",
			Port:             0,
			Login:            "alice@example.com",
			Password:         "P@ssw0rd",
			DisplayName:      "Alice",
			EnabledPositions: []int{1, 3, 5, 7},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/runs",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
			Dir:        "./logs",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MFAFLOW_ENV"); env != "" {
		config.Environment = env
	}

	// Browser
	if provider := os.Getenv("MFAFLOW_BROWSER_PROVIDER"); provider != "" {
		config.Browser.Provider = provider
	}
	if headless := os.Getenv("MFAFLOW_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if noSandbox := os.Getenv("MFAFLOW_BROWSER_NO_SANDBOX"); noSandbox != "" {
		if ns, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = ns
		}
	}
	if execPath := os.Getenv("MFAFLOW_BROWSER_EXEC_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}
	if remoteURL := os.Getenv("MFAFLOW_BROWSER_REMOTE_URL"); remoteURL != "" {
		config.Browser.RemoteURL = remoteURL
	}
	if waitTimeout := os.Getenv("MFAFLOW_BROWSER_WAIT_TIMEOUT"); waitTimeout != "" {
		config.Browser.WaitTimeout = waitTimeout
	}
	if screenshotDir := os.Getenv("MFAFLOW_SCREENSHOT_DIR"); screenshotDir != "" {
		config.Browser.ScreenshotDir = screenshotDir
	}

	// Surface and scenario
	if surfaceURL := os.Getenv("MFAFLOW_SURFACE_URL"); surfaceURL != "" {
		config.Surface.URL = surfaceURL
	}
	if login := os.Getenv("MFAFLOW_LOGIN"); login != "" {
		config.Scenario.Login = login
	}
	if password := os.Getenv("MFAFLOW_PASSWORD"); password != "" {
		config.Scenario.Password = password
	}

	// Fixture
	if port := os.Getenv("MFAFLOW_FIXTURE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Fixture.Port = p
		}
	}

	// Storage
	if path, ok := os.LookupEnv("MFAFLOW_STORAGE_PATH"); ok {
		config.Storage.Badger.Path = path
	}

	// Logging
	if level := os.Getenv("MFAFLOW_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MFAFLOW_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Schedule
	if schedule := os.Getenv("MFAFLOW_SCHEDULE"); schedule != "" {
		config.Schedule.Cron = schedule
	}
}

// FlagOverrides carries command-line values that take precedence over every other source
type FlagOverrides struct {
	SurfaceURL  string
	Provider    string
	FixturePort int
	LogLevel    string
	Headful     bool
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.SurfaceURL != "" {
		config.Surface.URL = flags.SurfaceURL
	}
	if flags.Provider != "" {
		config.Browser.Provider = flags.Provider
	}
	if flags.FixturePort > 0 {
		config.Fixture.Port = flags.FixturePort
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
	if flags.Headful {
		config.Browser.Headless = false
	}
}

// Validate checks struct constraints, duration strings and the optional cron schedule
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"browser.wait_timeout":    c.Browser.WaitTimeout,
		"browser.poll_interval":   c.Browser.PollInterval,
		"browser.session_timeout": c.Browser.SessionTimeout,
		"schedule.run_timeout":    c.Schedule.RunTimeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	if c.Schedule.Cron != "" {
		if err := ValidateSchedule(c.Schedule.Cron); err != nil {
			return err
		}
	}

	for _, pos := range c.Fixture.EnabledPositions {
		if c.Fixture.FieldCount == 0 && pos > len([]rune(c.Fixture.Password)) {
			return fmt.Errorf("fixture enabled position %d exceeds password length %d", pos, len([]rune(c.Fixture.Password)))
		}
	}

	return nil
}

// ValidateSchedule validates a six-field cron expression (seconds first)
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// WaitTimeout returns the bounded wait used by every readiness poll
func (c *Config) WaitTimeout() time.Duration {
	return parseDurationOr(c.Browser.WaitTimeout, 10*time.Second)
}

// PollInterval returns the interval between readiness polls
func (c *Config) PollInterval() time.Duration {
	return parseDurationOr(c.Browser.PollInterval, 100*time.Millisecond)
}

// SessionTimeout returns the ceiling for a single scenario run
func (c *Config) SessionTimeout() time.Duration {
	return parseDurationOr(c.Browser.SessionTimeout, 2*time.Minute)
}

// RunTimeout returns the per-run ceiling for scheduled runs
func (c *Config) RunTimeout() time.Duration {
	return parseDurationOr(c.Schedule.RunTimeout, c.SessionTimeout())
}

// HistoryEnabled reports whether run records are persisted
func (c *Config) HistoryEnabled() bool {
	return strings.TrimSpace(c.Storage.Badger.Path) != ""
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
