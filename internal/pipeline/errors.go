package pipeline

import (
	"errors"
	"fmt"
)

// Stage names used for the outer mappings in StageError.
const (
	StageOuterRequest  = "request"
	StageOuterResponse = "response"
)

// StageError is returned when a pipeline aborts. It records the resolver and
// the stage (function name or outer mapping) that failed.
type StageError struct {
	Resolver FieldKey
	Stage    string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("resolver %s aborted at %s: %v", e.Resolver, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// UnresolvedFieldError is returned when no resolver is configured for a field.
// It signals a configuration error rather than a runtime failure.
type UnresolvedFieldError struct {
	Key FieldKey
}

func (e *UnresolvedFieldError) Error() string {
	return fmt.Sprintf("no resolver configured for %s", e.Key)
}

// IsUnresolved returns true if err reports a field without a resolver.
func IsUnresolved(err error) bool {
	var u *UnresolvedFieldError
	return errors.As(err, &u)
}
