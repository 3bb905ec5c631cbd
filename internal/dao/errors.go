package dao

import (
	"errors"
	"fmt"

	"github.com/wso2/consent-lifecycle-store/internal/database"
)

// Error kinds raised by the consent store. Match them with errors.Is.
var (
	ErrInsertion = errors.New("insertion error")
	ErrRetrieval = errors.New("retrieval error")
	ErrUpdation  = errors.New("updation error")
	ErrDeletion  = errors.New("deletion error")
)

// Causes that accompany a kind.
var (
	ErrConflict         = errors.New("record already exists")
	ErrReferenceMissing = errors.New("referenced record does not exist")
	ErrUnknownStatus    = errors.New("status is not part of the configured vocabulary")
	ErrIdentifierPreset = errors.New("identifier is generated by the store and must be empty")
	ErrNoRowsAffected   = errors.New("no matching record")
	ErrInvalidInput     = errors.New("invalid input")

	ErrConcurrentModification = errors.New("record was modified concurrently")
)

// StoreError carries the kind of failure, the failing operation and the driver error.
type StoreError struct {
	Kind error
	Op   string
	Err  error

	causes []error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the kind, the wrapped error and any classified constraint cause.
func (e *StoreError) Unwrap() []error {
	return e.causes
}

func newStoreError(kind error, op string, err error) error {
	se := &StoreError{Kind: kind, Op: op, Err: err}
	se.causes = []error{kind}
	if err != nil {
		se.causes = append(se.causes, err)
		switch {
		case database.IsDuplicateKeyError(err):
			se.causes = append(se.causes, ErrConflict)
		case database.IsForeignKeyError(err):
			se.causes = append(se.causes, ErrReferenceMissing)
		}
	}
	return se
}

func insertionError(op string, err error) error { return newStoreError(ErrInsertion, op, err) }
func retrievalError(op string, err error) error { return newStoreError(ErrRetrieval, op, err) }
func updationError(op string, err error) error  { return newStoreError(ErrUpdation, op, err) }
func deletionError(op string, err error) error  { return newStoreError(ErrDeletion, op, err) }
