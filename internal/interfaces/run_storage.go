package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/mfaflow/internal/models"
)

// ErrRunNotFound is returned when a run record does not exist
var ErrRunNotFound = errors.New("run not found")

// RunStorage persists scenario run records
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	// ListRuns returns runs newest first; limit <= 0 means all
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	CountRuns(ctx context.Context) (int, error)
	Close() error
}
