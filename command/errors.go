package command

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a custom command or admin entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCommand is returned when creating a (source, name) pair that
	// already exists or that collides with a built-in.
	ErrDuplicateCommand = errors.New("command already exists")
	// ErrUnauthorized is returned when the invoker lacks the required privilege.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidName is returned for custom command names outside [a-z][a-z0-9_]*.
	ErrInvalidName = errors.New("invalid command name")
	// ErrUsage is returned for malformed built-in arguments.
	ErrUsage = errors.New("invalid usage")
)

// StorageError wraps a failure of the durable store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError for op. It returns nil for a nil err.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ExecutionError wraps a failing or panicking built-in handler.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}
func (e *ExecutionError) Unwrap() error { return e.Err }

// Class groups errors for logs and metric labels.
type Class int

const (
	ClassNone Class = iota
	ClassNotFound
	ClassDuplicate
	ClassUnauthorized
	ClassInvalid
	ClassStorage
	ClassExecution
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassNotFound:
		return "not_found"
	case ClassDuplicate:
		return "duplicate"
	case ClassUnauthorized:
		return "unauthorized"
	case ClassInvalid:
		return "invalid"
	case ClassStorage:
		return "storage"
	default:
		return "execution"
	}
}

// Classify maps err onto the taxonomy. Storage failures win over domain
// sentinels they might wrap; anything unrecognized is an execution failure.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	var se *StorageError
	switch {
	case errors.As(err, &se):
		return ClassStorage
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrDuplicateCommand):
		return ClassDuplicate
	case errors.Is(err, ErrUnauthorized):
		return ClassUnauthorized
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrUsage):
		return ClassInvalid
	default:
		return ClassExecution
	}
}
