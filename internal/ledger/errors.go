package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNoContext means the caller could not be placed in any worktree.
	ErrNoContext = errors.New("no worktree context detected")

	// ErrConflict is returned when a unique name is already taken.
	ErrConflict = errors.New("already exists")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string
	Ref  string
}

// NotFound builds a NotFoundError, e.g. NotFound("Task", "#7").
func NotFound(kind, ref string) *NotFoundError {
	return &NotFoundError{Kind: kind, Ref: ref}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Ref)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError is returned before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: field + " is required"}
}

func invalidEnum(field, value string, allowed []string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("invalid %s '%s' (allowed: %s)", field, value, strings.Join(allowed, ", ")),
	}
}

func invalidValue(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("invalid %s: %v", field, err)}
}
