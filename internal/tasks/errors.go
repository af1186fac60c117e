// File: internal/tasks/errors.go
package tasks

import "fmt"

// NavigationError means an expected page element failed to appear within
// its per-step timeout during a pre-submission step. Terminal for the run.
type NavigationError struct {
	Step     string
	Selector string
	Err      error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("the portal page did not behave as expected during %q (waiting on %s)", e.Step, e.Selector)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// VerificationError means the checkpoint answer was rejected or its effect
// never became observable within the settle window. Terminal for the run.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string { return e.Reason }

func (e *VerificationError) Unwrap() error { return e.Err }

// BusinessRejection carries a domain failure reported by the portal itself
// (duplicate registration, unknown record). The portal's message surfaces
// to the user verbatim, never wrapped.
type BusinessRejection struct {
	Message string
}

func (e *BusinessRejection) Error() string { return e.Message }
