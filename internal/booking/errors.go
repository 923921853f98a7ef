package booking

import "fmt"

// ValidationError rejects a request before any write happens. Always
// caller-fixable, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid booking request: " + e.Reason
}

// Saga steps, used to tell callers whether any state was written when a
// persistence error surfaces.
const (
	StepAppointment = "appointment"
	StepItems       = "items"
)

// PersistenceError wraps a storage failure with the step it happened at.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s write failed: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// FilterError names the offending token of a status filter, when known.
type FilterError struct {
	Token string
}

func (e *FilterError) Error() string {
	if e.Token == "" {
		return "invalid status filter"
	}
	return "invalid status filter: " + e.Token
}
