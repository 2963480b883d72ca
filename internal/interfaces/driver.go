package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/mfaflow/internal/models"
)

// InteractionDriver provides timeout-bounded primitives over an asynchronous UI surface.
// FindWhenReady, FindAllWhenReady and WaitForContextCount are the only calls that wait.
type InteractionDriver interface {
	FindWhenReady(ctx context.Context, loc models.Locator, timeout time.Duration) (Element, error)
	FindAllWhenReady(ctx context.Context, loc models.Locator, timeout time.Duration) ([]Element, error)

	Click(ctx context.Context, el Element) error
	SetText(ctx context.Context, el Element, value string) error
	ReadText(ctx context.Context, el Element) (string, error)
	ReadAttribute(ctx context.Context, el Element, name string) (string, bool, error)
	IsInteractable(ctx context.Context, el Element) (bool, error)

	ListOpenContexts(ctx context.Context) (models.ContextSet, error)
	ActiveContext() models.ContextHandle
	SwitchTo(ctx context.Context, handle models.ContextHandle) error
	CloseActive(ctx context.Context) error
	WaitForContextCount(ctx context.Context, greaterThan int, timeout time.Duration) (models.ContextSet, error)

	Navigate(ctx context.Context, url string) error
}
