package orchestrator

import (
	"errors"
	"fmt"
)

var (
	ErrActionExecution      = errors.New("action execution failed")
	ErrTagNotFound          = errors.New("containment tag not found in final dom")
	ErrNoThenSteps          = errors.New("scenario has no then steps")
	ErrNoValidationResponse = errors.New("validation session returned no text")
)

// ActionExecutionError reports a driver failure. It matches both
// ErrActionExecution and the driver's own error.
type ActionExecutionError struct {
	Scenario int
	Step     int
	Action   string
	Err      error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("scenario %d step %d %s: %v", e.Scenario, e.Step, e.Action, e.Err)
}

func (e *ActionExecutionError) Unwrap() []error {
	return []error{ErrActionExecution, e.Err}
}
