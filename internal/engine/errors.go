package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a malformed declaration. It is fatal and
// always raised before any mutation is attempted.
type ValidationError struct {
	Resource string
	Detail   string
}

func (e *ValidationError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Resource, e.Detail)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Detail)
}

// CyclicDependencyError reports a reference cycle, naming the members
// in traversal order. Fatal, pre-plan.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// DependencyFailedError marks a change skipped because an upstream
// operation failed. It is propagated to dependents, never retried.
type DependencyFailedError struct {
	Resource   string
	Dependency string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("%s skipped: dependency %s failed", e.Resource, e.Dependency)
}

// BackendError wraps a provider failure for one operation on one
// resource. Transient kinds (throttling, timeouts) are retried with
// exponential backoff; permanent kinds fail the branch immediately.
type BackendError struct {
	Resource  string
	Operation string
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", strings.ToLower(e.Operation), e.Resource, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
