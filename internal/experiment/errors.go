package experiment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDepth          = errors.New("invalid depth")
	ErrUnsupportedQubitCount = errors.New("unsupported qubit count")
	ErrIncompatibleShapes    = errors.New("incompatible experiment shapes")
	ErrMismatchedLengths     = errors.New("mismatched array lengths")
	ErrNotAcquired           = errors.New("experiment not acquired")
	ErrAlreadyAcquired       = errors.New("component already acquired")
)

// CollaboratorError wraps a failure surfaced by an external dependency
// (synthesizer, executor, tomographer, optimizer).
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Collaborator wraps err as a CollaboratorError for op. Nil stays nil.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Op: op, Err: err}
}
