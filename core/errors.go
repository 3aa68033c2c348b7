package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// ScopeError is the failure of one scope of a batch run.
// Sibling scopes are not affected by it.
type ScopeError struct {
	Scope Scope
	Err   error
}

func NewScopeError(scope Scope, err error) *ScopeError {
	return &ScopeError{Scope: scope, Err: err}
}

func (err ScopeError) Error() string {
	return fmt.Sprintf("%s: %v", err.Scope, err.Err)
}

func (err ScopeError) Cause() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
