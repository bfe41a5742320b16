package environment

import (
	"errors"
	"strings"
)

// ValidationError describes one invalid Environment input.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return "environment: " + e.Field + ": " + e.Message
}

// ValidationErrors is returned by Builder.Build when one or more inputs are
// invalid.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, v := range e {
		out = append(out, v.Field)
	}
	return out
}

// IsValidationError returns true if err was produced by environment validation.
func IsValidationError(err error) bool {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return true
	}
	var single ValidationError
	return errors.As(err, &single)
}
