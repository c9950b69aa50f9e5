// internal/workflow/errors.go
package workflow

import "fmt"

// ErrorCode classifies why a workflow did not complete.
type ErrorCode string

const (
	// ErrCodeNotFound: an expected element or candidate was absent. The step is
	// skipped and the run continues or ends normally.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeFormTransition: a form did not advance to its next step within the
	// bound. The workflow aborts without submitting.
	ErrCodeFormTransition ErrorCode = "FORM_TRANSITION_FAILURE"
	// ErrCodeSessionFailure: the browser or the generation backend failed.
	ErrCodeSessionFailure ErrorCode = "SESSION_FAILURE"
)

// SessionError is returned when a workflow cannot continue because the browser
// or the generation backend failed. Callers are expected to capture a
// diagnostic and end the run with a failure status.
type SessionError struct {
	Workflow string
	State    State
	Err      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s workflow failed in state %s: %v", e.Workflow, e.State, e.Err)
}

// Unwrap provides the underlying error for use with errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}
