// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 4:51:02 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/driver"
	"github.com/ternarybob/mfaflow/internal/models"
)

// Orchestrator sequences the multi-factor login over an InteractionDriver.
// Steps advance strictly forward; any failure leaves the orchestrator Aborted.
type Orchestrator struct {
	session    *Session
	state      models.FlowState
	credential models.Credential
	logger     arbor.ILogger
}

// NewOrchestrator creates an orchestrator in StateAwaitingLogin
func NewOrchestrator(session *Session) *Orchestrator {
	logger := session.Logger
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Orchestrator{
		session: session,
		state:   models.StateAwaitingLogin,
		logger:  logger,
	}
}

// State returns the current flow state
func (o *Orchestrator) State() models.FlowState {
	return o.state
}

// SubmitLogin writes the login identifier and activates the next control
func (o *Orchestrator) SubmitLogin(ctx context.Context, login string) error {
	const step = models.StateAwaitingLogin
	if err := o.begin(step); err != nil {
		return err
	}

	err := o.fillAndSubmit(ctx, o.session.Locators.LoginInput, login, o.session.Locators.LoginNext)
	if err == nil {
		o.credential.Login = login
	}
	return o.finish(step, err)
}

// ExtractCode opens the code page in a new browsing context, reads the one-time code and
// closes the page again. Every context opened by the step is closed and the origin context
// re-activated on every exit path where the provider still allows it.
func (o *Orchestrator) ExtractCode(ctx context.Context) (string, error) {
	const step = models.StateAwaitingSecondaryContext
	if err := o.begin(step); err != nil {
		return "", err
	}

	code, err := o.extractCode(ctx)
	if err == nil {
		o.credential.Code = code
	}
	return code, o.finish(step, err)
}

func (o *Orchestrator) extractCode(ctx context.Context) (code string, err error) {
	d := o.session.Driver
	timeout := o.session.timeout()

	origin := d.ActiveContext()
	before, err := d.ListOpenContexts(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list browsing contexts: %w", err)
	}

	// A click may open the page and still report an error, so release covers it too
	defer func() {
		if releaseErr := o.release(ctx, origin, before); releaseErr != nil {
			if err == nil {
				code, err = "", releaseErr
			} else {
				err = errors.Join(err, releaseErr)
			}
		}
	}()

	link, err := d.FindWhenReady(ctx, o.session.Locators.CodeLink, timeout)
	if err != nil {
		return "", err
	}
	if err := d.Click(ctx, link); err != nil {
		return "", fmt.Errorf("failed to open code page: %w", err)
	}

	after, err := d.WaitForContextCount(ctx, len(before), timeout)
	if err != nil {
		return "", err
	}

	fresh := after.Difference(before)
	switch {
	case len(fresh) == 0:
		// Count grew only because pre-existing contexts were replaced
		return "", fmt.Errorf("%w: no new browsing context after opening the code page", driver.ErrNotFound)
	case len(fresh) > 1:
		return "", fmt.Errorf("%w: %d new browsing contexts %v", driver.ErrAmbiguousContext, len(fresh), fresh)
	}

	if err := d.SwitchTo(ctx, fresh[0]); err != nil {
		return "", err
	}

	el, err := d.FindWhenReady(ctx, o.session.Locators.CodeValue, timeout)
	if err != nil {
		return "", err
	}
	code, err = d.ReadText(ctx, el)
	if err != nil {
		return "", fmt.Errorf("failed to read code: %w", err)
	}
	if code == "" {
		return "", fmt.Errorf("%w: code element %s is empty", driver.ErrNotFound, o.session.Locators.CodeValue)
	}

	o.logger.Debug().
		Str("context", fresh[0].String()).
		Int("code_length", len(code)).
		Msg("One-time code read from secondary context")

	return code, nil
}

// release closes every context that appeared after before was taken and re-activates origin.
// It runs detached from ctx cancellation so a timed-out run still cleans up.
func (o *Orchestrator) release(ctx context.Context, origin models.ContextHandle, before models.ContextSet) error {
	d := o.session.Driver
	cleanupCtx := context.WithoutCancel(ctx)

	open, err := d.ListOpenContexts(cleanupCtx)
	if err != nil {
		return fmt.Errorf("failed to list browsing contexts for release: %w", err)
	}

	var errs []error
	for _, h := range open.Difference(before) {
		if err := d.SwitchTo(cleanupCtx, h); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.CloseActive(cleanupCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := d.SwitchTo(cleanupCtx, origin); err != nil {
		errs = append(errs, fmt.Errorf("failed to return to origin context: %w", err))
	}

	if remaining, err := d.ListOpenContexts(cleanupCtx); err == nil && !remaining.Equal(before) {
		o.logger.Warn().
			Str("session", o.session.ID).
			Str("before", fmt.Sprint(before.Handles())).
			Str("after", fmt.Sprint(remaining.Handles())).
			Msg("Browsing contexts differ from those open before the code page")
	}
	return errors.Join(errs...)
}

// SubmitCode writes the one-time code and activates the code next control.
// The code is discarded once submitted.
func (o *Orchestrator) SubmitCode(ctx context.Context, code string) error {
	const step = models.StateAwaitingCode
	if err := o.begin(step); err != nil {
		return err
	}

	err := o.fillAndSubmit(ctx, o.session.Locators.CodeInput, code, o.session.Locators.CodeNext)
	o.credential.Code = ""
	return o.finish(step, err)
}

// FillMaskedPassword writes password characters into the enabled masked inputs and activates
// the login control. Every enabled position is validated before the first write, so an invalid
// position leaves all fields untouched and the login control inactive.
func (o *Orchestrator) FillMaskedPassword(ctx context.Context, password string) error {
	const step = models.StateAwaitingMaskedPassword
	if err := o.begin(step); err != nil {
		return err
	}
	return o.finish(step, o.fillMaskedPassword(ctx, password))
}

func (o *Orchestrator) fillMaskedPassword(ctx context.Context, password string) error {
	d := o.session.Driver
	timeout := o.session.timeout()
	locs := o.session.Locators

	elements, err := d.FindAllWhenReady(ctx, locs.MaskedInputs, timeout)
	if err != nil {
		return err
	}
	if len(elements) == 0 {
		return fmt.Errorf("%w: no masked inputs matched %s", driver.ErrNotFound, locs.MaskedInputs)
	}

	fields := make([]models.MaskedField, len(elements))
	for i, el := range elements {
		enabled, err := d.IsInteractable(ctx, el)
		if err != nil {
			return fmt.Errorf("failed to inspect masked input %d: %w", i, err)
		}
		if !enabled {
			continue
		}

		raw, present, err := d.ReadAttribute(ctx, el, locs.PositionAttribute)
		if err != nil {
			return fmt.Errorf("failed to read %s of masked input %d: %w", locs.PositionAttribute, i, err)
		}
		pos, err := ParsePosition(raw, present)
		if err != nil {
			return fmt.Errorf("masked input %d: %w", i, err)
		}
		fields[i] = models.MaskedField{Position: pos, Enabled: true}
	}

	writes, err := PlanMaskedWrites(password, fields)
	if err != nil {
		return err
	}

	for _, w := range writes {
		if err := d.SetText(ctx, elements[w.Index], w.Char); err != nil {
			return fmt.Errorf("failed to write position %d: %w", w.Position, err)
		}
	}

	o.logger.Debug().
		Int("fields", len(elements)).
		Int("written", len(writes)).
		Msg("Masked password filled")

	if len(writes) == 0 {
		o.logger.Warn().Msg("No masked input was interactable; activating login with nothing written")
	}

	button, err := d.FindWhenReady(ctx, locs.LoginButton, timeout)
	if err != nil {
		return err
	}
	if err := d.Click(ctx, button); err != nil {
		return fmt.Errorf("failed to activate login control: %w", err)
	}
	return nil
}

// ReadWelcomeText waits for the post-login confirmation and returns its trimmed text
func (o *Orchestrator) ReadWelcomeText(ctx context.Context) (string, error) {
	const step = models.StateLoggedIn
	if err := o.begin(step); err != nil {
		return "", err
	}

	text, err := o.readWelcomeText(ctx)
	if err := o.finish(step, err); err != nil {
		return "", err
	}
	return text, nil
}

func (o *Orchestrator) readWelcomeText(ctx context.Context) (string, error) {
	d := o.session.Driver
	el, err := d.FindWhenReady(ctx, o.session.Locators.Welcome, o.session.timeout())
	if err != nil {
		return "", err
	}
	text, err := d.ReadText(ctx, el)
	if err != nil {
		return "", fmt.Errorf("failed to read welcome text: %w", err)
	}
	return text, nil
}

// Run executes every step in order and returns the welcome text
func (o *Orchestrator) Run(ctx context.Context, login, password string) (string, error) {
	start := time.Now()
	o.credential.Password = password

	if err := o.SubmitLogin(ctx, login); err != nil {
		return "", err
	}
	code, err := o.ExtractCode(ctx)
	if err != nil {
		return "", err
	}
	if err := o.SubmitCode(ctx, code); err != nil {
		return "", err
	}
	if err := o.FillMaskedPassword(ctx, password); err != nil {
		return "", err
	}
	welcome, err := o.ReadWelcomeText(ctx)
	if err != nil {
		return "", err
	}

	o.logger.Info().
		Str("session", o.session.ID).
		Dur("elapsed", time.Since(start)).
		Msg("Login flow completed")

	return welcome, nil
}

func (o *Orchestrator) fillAndSubmit(ctx context.Context, input models.Locator, value string, submit models.Locator) error {
	d := o.session.Driver
	timeout := o.session.timeout()

	field, err := d.FindWhenReady(ctx, input, timeout)
	if err != nil {
		return err
	}
	if err := d.SetText(ctx, field, value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", input, err)
	}

	next, err := d.FindWhenReady(ctx, submit, timeout)
	if err != nil {
		return err
	}
	if err := d.Click(ctx, next); err != nil {
		return fmt.Errorf("failed to activate %s: %w", submit, err)
	}
	return nil
}

func (o *Orchestrator) begin(step models.FlowState) error {
	if o.state != step {
		return o.invalid(step)
	}
	o.logger.Debug().Str("session", o.session.ID).Str("step", step.String()).Msg("Step started")
	return nil
}

func (o *Orchestrator) finish(step models.FlowState, err error) error {
	if err != nil {
		o.state = models.StateAborted
		o.logger.Error().
			Str("session", o.session.ID).
			Str("step", step.String()).
			Str("kind", driver.Kind(err)).
			Err(err).
			Msg("Step failed")
		return &StepError{Step: step, Err: err}
	}
	o.state = step.Next()
	return nil
}

func (o *Orchestrator) invalid(step models.FlowState) error {
	if o.state.IsTerminal() {
		return fmt.Errorf("%w: %s requested after the flow ended in %s", ErrInvalidTransition, step, o.state)
	}
	return fmt.Errorf("%w: %s requested in state %s", ErrInvalidTransition, step, o.state)
}
