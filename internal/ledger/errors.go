package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotImplemented = errors.New("not implemented")
	ErrCorruptState   = errors.New("corrupt state")
	ErrPersist        = errors.New("persist failed")
	ErrLocked         = errors.New("state is locked by another process")
)

// PersistError reports a commit whose in-memory insertion succeeded but whose write to the
// backend did not.
type PersistError struct {
	WorkoutID string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist processed workout %s: %v", e.WorkoutID, e.Err)
}

func (e *PersistError) Is(target error) bool {
	return target == ErrPersist
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
