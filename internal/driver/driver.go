// -----------------------------------------------------------------------
// Last Modified: Tuesday, 13th October 2026 9:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/mfaflow/internal/interfaces"
	"github.com/ternarybob/mfaflow/internal/models"
)

// DefaultPollInterval is used when New is given a non-positive interval
const DefaultPollInterval = 100 * time.Millisecond

// Driver implements interfaces.InteractionDriver over a BrowsingProvider.
// Rendering latency is absorbed here so the flow never reads UI state immediately after acting.
type Driver struct {
	provider     interfaces.BrowsingProvider
	pollInterval time.Duration
	logger       arbor.ILogger
}

var _ interfaces.InteractionDriver = (*Driver)(nil)

// New creates a driver polling at pollInterval
func New(provider interfaces.BrowsingProvider, pollInterval time.Duration, logger arbor.ILogger) *Driver {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Driver{
		provider:     provider,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Provider returns the underlying browsing provider
func (d *Driver) Provider() interfaces.BrowsingProvider {
	return d.provider
}

// FindWhenReady waits until loc matches in the active context and returns the first match
func (d *Driver) FindWhenReady(ctx context.Context, loc models.Locator, timeout time.Duration) (interfaces.Element, error) {
	elements, lastErr, err := d.pollElements(ctx, loc, timeout)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %s within %s (last error: %v)", ErrNotFound, loc, timeout, lastErr)
		}
		return nil, fmt.Errorf("%w: %s within %s", ErrNotFound, loc, timeout)
	}
	return elements[0], nil
}

// FindAllWhenReady waits until loc matches at least once and returns every match.
// An empty result after the timeout is not an error; callers needing a match must check.
func (d *Driver) FindAllWhenReady(ctx context.Context, loc models.Locator, timeout time.Duration) ([]interfaces.Element, error) {
	elements, _, err := d.pollElements(ctx, loc, timeout)
	if err != nil {
		return nil, err
	}
	return elements, nil
}

// pollElements returns the matches, the last transient query error, and a fatal error
func (d *Driver) pollElements(ctx context.Context, loc models.Locator, timeout time.Duration) ([]interfaces.Element, error, error) {
	var found []interfaces.Element
	lastErr, err := d.poll(ctx, timeout, func(waitCtx context.Context) (bool, error) {
		elements, err := d.provider.Query(waitCtx, loc)
		if err != nil {
			return false, err
		}
		found = elements
		return len(elements) > 0, nil
	})
	if err != nil {
		return nil, nil, err
	}

	d.logger.Trace().
		Str("locator", loc.String()).
		Int("matches", len(found)).
		Msg("Locator poll finished")

	return found, lastErr, nil
}

// WaitForContextCount waits until more than greaterThan browsing contexts are open
func (d *Driver) WaitForContextCount(ctx context.Context, greaterThan int, timeout time.Duration) (models.ContextSet, error) {
	var set models.ContextSet
	lastErr, err := d.poll(ctx, timeout, func(waitCtx context.Context) (bool, error) {
		handles, err := d.provider.Contexts(waitCtx)
		if err != nil {
			return false, err
		}
		set = models.NewContextSet(handles...)
		return len(set) > greaterThan, nil
	})
	if err != nil {
		return nil, err
	}
	if len(set) <= greaterThan {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: more than %d browsing contexts within %s (last error: %v)", ErrNotFound, greaterThan, timeout, lastErr)
		}
		return nil, fmt.Errorf("%w: more than %d browsing contexts within %s", ErrNotFound, greaterThan, timeout)
	}
	return set, nil
}

// poll runs check until it reports done, the timeout elapses, or a fatal error occurs.
// Stale-context and parent cancellation errors are fatal; other check errors are retried.
func (d *Driver) poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) (lastErr error, err error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(d.pollInterval), 1)
	limiter.Allow() // first check runs immediately

	for {
		done, checkErr := check(waitCtx)
		switch {
		case errors.Is(checkErr, ErrStaleContext):
			return nil, checkErr
		case checkErr != nil:
			lastErr = checkErr
		case done:
			return nil, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return lastErr, ctx.Err()
			}
			return lastErr, nil
		case <-time.After(limiter.Reserve().Delay()):
		}
	}
}

// Click activates an already-resolved element
func (d *Driver) Click(ctx context.Context, el interfaces.Element) error {
	if err := d.checkActive(el); err != nil {
		return err
	}
	return d.provider.Click(ctx, el)
}

// SetText clears any prior value and types value
func (d *Driver) SetText(ctx context.Context, el interfaces.Element, value string) error {
	if err := d.checkActive(el); err != nil {
		return err
	}
	if err := d.provider.Clear(ctx, el); err != nil {
		return fmt.Errorf("failed to clear element: %w", err)
	}
	if err := d.provider.SendKeys(ctx, el, value); err != nil {
		return fmt.Errorf("failed to type into element: %w", err)
	}
	return nil
}

// ReadText returns the element text with surrounding whitespace trimmed
func (d *Driver) ReadText(ctx context.Context, el interfaces.Element) (string, error) {
	if err := d.checkActive(el); err != nil {
		return "", err
	}
	text, err := d.provider.Text(ctx, el)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ReadAttribute returns the attribute value and whether it is present
func (d *Driver) ReadAttribute(ctx context.Context, el interfaces.Element, name string) (string, bool, error) {
	if err := d.checkActive(el); err != nil {
		return "", false, err
	}
	return d.provider.Attribute(ctx, el, name)
}

// IsInteractable reports whether the element accepts input
func (d *Driver) IsInteractable(ctx context.Context, el interfaces.Element) (bool, error) {
	if err := d.checkActive(el); err != nil {
		return false, err
	}
	return d.provider.Enabled(ctx, el)
}

// ListOpenContexts returns every open browsing context
func (d *Driver) ListOpenContexts(ctx context.Context) (models.ContextSet, error) {
	handles, err := d.provider.Contexts(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewContextSet(handles...), nil
}

// ActiveContext returns the context lookups resolve against
func (d *Driver) ActiveContext() models.ContextHandle {
	return d.provider.Active()
}

// SwitchTo makes handle the active context
func (d *Driver) SwitchTo(ctx context.Context, handle models.ContextHandle) error {
	if err := d.provider.SwitchTo(ctx, handle); err != nil {
		return err
	}
	d.logger.Debug().Str("context", handle.String()).Msg("Switched browsing context")
	return nil
}

// CloseActive closes the active context; nothing is active until the next SwitchTo
func (d *Driver) CloseActive(ctx context.Context) error {
	active := d.provider.Active()
	if active == "" {
		return fmt.Errorf("%w: no active browsing context to close", ErrStaleContext)
	}
	if err := d.provider.CloseActive(ctx); err != nil {
		return err
	}
	d.logger.Debug().Str("context", active.String()).Msg("Closed browsing context")
	return nil
}

// Navigate loads url in the active context
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if d.provider.Active() == "" {
		return fmt.Errorf("%w: no active browsing context to navigate", ErrStaleContext)
	}
	return d.provider.Navigate(ctx, url)
}

// checkActive rejects elements resolved in a context that is no longer active
func (d *Driver) checkActive(el interfaces.Element) error {
	if el == nil {
		return fmt.Errorf("nil element")
	}
	active := d.provider.Active()
	if active == "" {
		return fmt.Errorf("%w: no active browsing context", ErrStaleContext)
	}
	if el.Context() != active {
		return fmt.Errorf("%w: element belongs to %s, active context is %s", ErrStaleContext, el.Context(), active)
	}
	return nil
}
