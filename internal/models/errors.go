package models

import "fmt"

// ValidationError reports a rejected field on an incoming record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func fieldError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
