package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError("NOT_FOUND", "Resource not found")
	ErrValidation   = NewDomainError("VALIDATION_FAILED", "Validation failed")
	ErrStorage      = NewDomainError("STORAGE_FAILURE", "Storage operation failed")
	ErrConstraint   = NewDomainError("CONSTRAINT_VIOLATION", "Storage constraint violated")
	ErrMigration    = NewDomainError("MIGRATION_FAILED", "Schema migration failed")
	ErrInvalidState = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// ValidationError is returned before any write is attempted when the input
// is incomplete or malformed. Fields names the offending columns.
type ValidationError struct {
	Fields  []string
	Message string
}

// NewValidationError creates a validation error for the given fields
func NewValidationError(message string, fields ...string) *ValidationError {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return &ValidationError{Fields: sorted, Message: message}
}

// MissingFieldsError reports required fields that were absent or empty
func MissingFieldsError(fields ...string) *ValidationError {
	v := NewValidationError("", fields...)
	v.Message = "missing required fields: " + strings.Join(v.Fields, ", ")
	return v
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// StorageError wraps an engine failure with the operation and table it came from.
// The original diagnostic is kept as the wrapped error.
type StorageError struct {
	Op    string
	Table string
	Err   error
	// Constraint is set when the engine rejected the write on a constraint
	Constraint bool
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the original engine error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorage for every storage error and ErrConstraint for constraint failures
func (e *StorageError) Is(target error) bool {
	if target == ErrStorage {
		return true
	}
	return target == ErrConstraint && e.Constraint
}

// MigrationError describes a failed schema migration. It is logged and
// swallowed by the migrator so startup can continue.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

// Error implements the error interface
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s): %v", e.Version, e.Name, e.Err)
}

// Unwrap returns the underlying failure
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Is matches ErrMigration
func (e *MigrationError) Is(target error) bool {
	return target == ErrMigration
}
