package tracking

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error taxonomy. Constraint violations and
// validation errors are fatal to the enclosing operation; ownership conflicts
// are recoverable (the existing record wins and resolution proceeds).
var (
	// ErrConstraintViolation is the base error for uniqueness or foreign-key
	// failures reported by the store.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrValidation is the base error for required-field or closed-set
	// violations detected before a row is written.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned by loaders when no live row matches.
	ErrNotFound = errors.New("record not found")

	// ErrNilEntity is returned when a nil entity is passed to a create or
	// validation call.
	ErrNilEntity = errors.New("entity cannot be nil")
)

type (
	// ConstraintViolation reports a uniqueness or foreign-key failure at the
	// store. Constraint carries the violated constraint name when the
	// backend reports one.
	ConstraintViolation struct {
		Table      string
		Constraint string
		Err        error
	}

	// ValidationError reports a required field missing or an enumeration
	// value outside its closed set.
	ValidationError struct {
		Table string
		Field string
		Err   error
	}

	// OwnershipConflict records a natural-key match whose parent differs
	// from the requested parent. It is logged and tolerated: the existing
	// record keeps its ownership and resolution returns it unchanged.
	OwnershipConflict struct {
		Table             string
		Name              string
		ParentTable       string
		ExistingParentID  int64
		RequestedParentID int64
	}
)

func (e *ConstraintViolation) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("constraint violation on %s (%s): %v", e.Table, e.Constraint, e.Err)
	}

	return fmt.Sprintf("constraint violation on %s: %v", e.Table, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// Is makes every ConstraintViolation match ErrConstraintViolation.
func (e *ConstraintViolation) Is(target error) bool { return target == ErrConstraintViolation }

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s.%s: %v", e.Table, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (c *OwnershipConflict) Error() string {
	return fmt.Sprintf("%s %q already belongs to %s %d, requested %s %d",
		c.Table, c.Name, c.ParentTable, c.ExistingParentID, c.ParentTable, c.RequestedParentID)
}
