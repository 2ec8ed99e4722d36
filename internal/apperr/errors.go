// Package apperr defines the error taxonomy shared by the adapter, the store,
// and the protocol bindings.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNotADirectory = errors.New("not a directory")
	ErrIsADirectory  = errors.New("is a directory")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrForbidden     = errors.New("forbidden")
	ErrStoreFailure  = errors.New("store failure")
)

// StoreError wraps a storage or transaction failure. It matches
// ErrStoreFailure with errors.Is and still unwraps to the driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStoreFailure.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// Store wraps err as a *StoreError. A nil err yields nil, and errors that
// already belong to the taxonomy are returned unchanged.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrConflict, ErrAlreadyExists, ErrStoreFailure} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}
