package flow

import (
	"errors"
	"fmt"

	"github.com/ternarybob/mfaflow/internal/models"
)

// ErrInvalidTransition is returned when a step is invoked out of order or after the run ended
var ErrInvalidTransition = errors.New("invalid transition")

// StepError reports the step at which a run aborted. The wrapped error carries the taxonomy
// sentinel from the driver package.
type StepError struct {
	Step models.FlowState
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step recorded in err, if any
func FailedStep(err error) (models.FlowState, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}
