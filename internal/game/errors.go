package game

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input to an operation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidStateError reports an operation attempted from a status that does
// not permit it.
type InvalidStateError struct {
	Command CommandType
	Status  Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a game in %s status", e.Command, e.Status)
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err is (or wraps) an InvalidStateError
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
