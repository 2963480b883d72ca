package flow

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/interfaces"
	"github.com/ternarybob/mfaflow/internal/models"
)

// DefaultTimeout bounds every wait when a session does not set one
const DefaultTimeout = 10 * time.Second

// Locators identifies the controls of the page under test
type Locators struct {
	LoginInput        models.Locator
	LoginNext         models.Locator
	CodeLink          models.Locator
	CodeValue         models.Locator
	CodeInput         models.Locator
	CodeNext          models.Locator
	MaskedInputs      models.Locator
	PositionAttribute string
	LoginButton       models.Locator
	Welcome           models.Locator
}

// DefaultLocators returns the locators of the bundled login surface
func DefaultLocators() Locators {
	l, _ := LocatorsFromConfig(common.NewDefaultConfig().Surface)
	return l
}

// LocatorsFromConfig parses the configured locator strings
func LocatorsFromConfig(cfg common.SurfaceConfig) (Locators, error) {
	var l Locators
	fields := []struct {
		name string
		raw  string
		dst  *models.Locator
	}{
		{"login_input", cfg.LoginInput, &l.LoginInput},
		{"login_next", cfg.LoginNext, &l.LoginNext},
		{"code_link", cfg.CodeLink, &l.CodeLink},
		{"code_value", cfg.CodeValue, &l.CodeValue},
		{"code_input", cfg.CodeInput, &l.CodeInput},
		{"code_next", cfg.CodeNext, &l.CodeNext},
		{"masked_inputs", cfg.MaskedInputs, &l.MaskedInputs},
		{"login_button", cfg.LoginButton, &l.LoginButton},
		{"welcome", cfg.Welcome, &l.Welcome},
	}
	for _, f := range fields {
		loc, err := models.ParseLocator(f.raw)
		if err != nil {
			return Locators{}, fmt.Errorf("surface.%s: %w", f.name, err)
		}
		*f.dst = loc
	}

	if cfg.PositionAttribute == "" {
		return Locators{}, fmt.Errorf("surface.position_attribute is required")
	}
	l.PositionAttribute = cfg.PositionAttribute
	return l, nil
}

// Session is everything one scenario run needs. Sessions share nothing, so several runs may
// proceed in one process, each over its own driver.
type Session struct {
	ID       string
	Driver   interfaces.InteractionDriver
	Locators Locators
	Timeout  time.Duration
	Logger   arbor.ILogger
}

func (s *Session) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}
