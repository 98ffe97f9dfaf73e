// Package apperr defines the error kinds shared by the cognition components.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a goal, memory or context id that is not known.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input or a forbidden state transition.
	ErrValidation = errors.New("validation failed")
	// ErrService marks a failure reported by an external collaborator.
	ErrService = errors.New("service error")
)

// NotFound returns an error wrapping ErrNotFound.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Invalid returns an error wrapping ErrValidation.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// ServiceError is returned by the wallet, LLM and social edges.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrService) match any ServiceError.
func (e *ServiceError) Is(target error) bool { return target == ErrService }

// Service wraps err as a ServiceError. A nil err stays nil.
func Service(service, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Service: service, Op: op, Err: err}
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
