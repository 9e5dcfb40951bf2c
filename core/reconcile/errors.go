package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTree is returned when the source tree has no single root
	// or contains nodes unreachable from it.
	ErrInvalidTree = errors.New("invalid source tree")

	// ErrProjectNotFound is returned when the source tree returns no entities.
	ErrProjectNotFound = errors.New("project not found in source tree")

	// ErrProjectIgnored is returned when the project itself is excluded from sync.
	ErrProjectIgnored = errors.New("project ignored")
)

// TransportError wraps a failure of the source tree or destination store
// transport. It is fatal to the current run.
type TransportError struct {
	// Op names the collaborator call that failed.
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a TransportError. A nil err stays nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
