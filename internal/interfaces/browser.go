package interfaces

import (
	"context"

	"github.com/ternarybob/mfaflow/internal/models"
)

// Element is an opaque handle to one resolved element. Each provider supplies its own
// implementation; callers only learn which browsing context the element belongs to.
type Element interface {
	Context() models.ContextHandle
}

// BrowsingProvider is the browsing-context capability the driver is built on.
// Every method acts immediately against the active context; waiting is the driver's job.
//
// Errors:
//   - driver.ErrStaleContext when the active context is closed or a handle is unknown
//   - any provider-specific error for transport failures
type BrowsingProvider interface {
	// Query returns all elements matching loc in the active context (possibly none)
	Query(ctx context.Context, loc models.Locator) ([]Element, error)

	Click(ctx context.Context, el Element) error
	Clear(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, value string) error
	Text(ctx context.Context, el Element) (string, error)
	Attribute(ctx context.Context, el Element, name string) (value string, present bool, err error)
	Enabled(ctx context.Context, el Element) (bool, error)

	// Contexts lists every open tab/window
	Contexts(ctx context.Context) ([]models.ContextHandle, error)
	// Active returns the handle lookups resolve against; empty after CloseActive
	Active() models.ContextHandle
	SwitchTo(ctx context.Context, handle models.ContextHandle) error
	CloseActive(ctx context.Context) error

	Navigate(ctx context.Context, url string) error
}

// ScreenshotProvider is implemented by providers that can capture the active context
type ScreenshotProvider interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
