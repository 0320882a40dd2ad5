package engine

import (
	"fmt"
	"strings"
)

// ValidationError reports bad input: missing thresholds, empty titles,
// malformed documents.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced hub or document that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Path }

// ConflictError reports a generated path colliding with an existing
// document.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Path + " already exists" }

// PartialFailureError reports an Executor batch where some fixes applied
// and others failed. Applied fixes stay in place; callers needing
// atomicity must roll back via the version-history collaborator.
type PartialFailureError struct {
	Fixed  int
	Errors []string
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: %d fixed, %d failed: %s",
		e.Fixed, len(e.Errors), strings.Join(e.Errors, "; "))
}
