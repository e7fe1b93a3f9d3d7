package model

import "fmt"

// ValidationError reports a caller-side input problem detected before any
// network call is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Missing returns a ValidationError for an absent required field
func Missing(field string) error {
	return &ValidationError{Field: field}
}
