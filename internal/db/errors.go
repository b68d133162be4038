package db

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is matched by every *InvariantError.
var ErrInvariantViolation = errors.New("single-row invariant violated")

// ErrIncompleteStatus is returned for a nil status or one without a transaction.
var ErrIncompleteStatus = errors.New("update status has no transaction")

// InvariantError reports that a table expected to hold at most one row
// was found (or made) otherwise.
type InvariantError struct {
	Table string
	Op    string
	Rows  int64 // rows found on read, rows affected on write
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: table %q is inconsistent: %d rows", e.Op, e.Table, e.Rows)
}

// Unwrap lets errors.Is match ErrInvariantViolation.
func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// StorageError wraps any failure to acquire a connection, run a statement,
// or finish a transaction.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("update status %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ReconstructionError reports that a transaction could not be rebuilt from
// a stored row. It always reaches callers inside a *StorageError.
type ReconstructionError struct {
	TransactionID int64
	Err           error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstructing transaction %d: %v", e.TransactionID, e.Err)
}

func (e *ReconstructionError) Unwrap() error {
	return e.Err
}

func isInvariant(err error) bool {
	return err != nil && errors.Is(err, ErrInvariantViolation)
}
