package repositories

import (
	"errors"
	"fmt"
)

// Error is the RepositoryError used by the in-process stores.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing record.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the error represents a duplicate key.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("already exists")
)

// NewNotFoundError reports a missing record.
func NewNotFoundError(op string) *Error {
	return &Error{op: op, err: errNotFound, notFound: true}
}

// NewConflictError reports a duplicate key, wrapping the driver error when there is one.
func NewConflictError(op string, err error) *Error {
	if err == nil {
		err = errConflict
	}
	return &Error{op: op, err: err, conflict: true}
}

// NewUnavailableError reports a backend failure.
func NewUnavailableError(op string, err error) *Error {
	return &Error{op: op, err: err, unavailable: true}
}

// IsNotFound reports whether err carries a not-found RepositoryError.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries a conflict RepositoryError.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
