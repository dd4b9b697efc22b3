package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// StorageError wraps a failed storage round trip.
// Constraint is set when the database rejected the write because of a
// constraint; such errors are not retryable.
type StorageError struct {
	Op         string
	Constraint string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: constraint %s violated: %v", e.Op, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsConstraintViolation reports whether the write broke a constraint.
func (e *StorageError) IsConstraintViolation() bool {
	return e.Constraint != ""
}

// Temporary reports whether the caller may retry the operation.
func (e *StorageError) Temporary() bool {
	return !e.IsConstraintViolation()
}

// wrapStorageError classifies err from a query against op.
// Unique violations are reported with uniqueErr so callers can match them
// with errors.Is; everything else, including deadline expiry, is a general
// storage failure.
func wrapStorageError(op string, err error, uniqueErr error) error {
	var pgErr *pgconn.PgError
	if uniqueErr != nil && errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		constraint := pgErr.ConstraintName
		if constraint == "" {
			constraint = "unique"
		}
		return &StorageError{Op: op, Constraint: constraint, Err: uniqueErr}
	}

	return &StorageError{Op: op, Err: err}
}
