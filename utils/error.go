package utils

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is returned before any write when input is missing or invalid.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a request that contradicts current state
// (PO already issued, deleting an item that has a PO, ...).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflictError(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// AllocationError means a sequence counter could not be advanced.
// The enclosing transaction must be rolled back.
type AllocationError struct {
	Scope string
	Err   error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("sequence allocation failed for %s: %v", e.Scope, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// AggregationError means a summary recompute failed; the stored summary is untouched.
type AggregationError struct {
	ProjectId int
	Err       error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("budget summary recompute failed for project %d: %v", e.ProjectId, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflictError(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsDuplicateKeyErr reports a MySQL unique constraint violation (1062).
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
