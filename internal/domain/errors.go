package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when there is no text or no chunks to index.
	ErrEmptyInput = errors.New("no text chunks to process")
	// ErrIndexNotFound is returned when no index was persisted at a location.
	ErrIndexNotFound = errors.New("index not found")
)

// CollaboratorError reports a failed call to an external collaborator
// such as the embedding model or the answer synthesizer.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Collaborate wraps err as a CollaboratorError. Nil stays nil and errors
// that already are collaborator errors are returned unchanged.
func Collaborate(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}

// IsCollaborator reports whether err came from an external collaborator.
func IsCollaborator(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
