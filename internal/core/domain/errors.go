package domain

import (
	"fmt"
	"strings"
)

// ValidationError carries the full list of input problems, indexed by field
// or point where applicable. Validation is all-or-nothing: a polygon that
// fails any check is rejected with every detected problem listed.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// StateConflictError signals an operation attempted from a disallowed
// source state. CurrentStatus lets the caller resynchronize.
type StateConflictError struct {
	Entity        string
	ID            string
	CurrentStatus string
	Attempted     string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %s is in state %s, cannot %s", e.Entity, e.ID, e.CurrentStatus, e.Attempted)
}

// NotFoundError signals an unknown application, item, or consent id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// AuthorizationError signals an actor that does not own the application or
// lacks the required role.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

// DependencyError signals a missing prerequisite, e.g. a consent upload
// before both sides have an ACTIVE coordinate history.
type DependencyError struct {
	Missing string
}

func (e *DependencyError) Error() string {
	return "missing prerequisite: " + e.Missing
}
