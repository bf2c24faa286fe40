package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchTrial reports that no trial exists at the requested position.
	// NextTrial returns it at the end of the experiment.
	ErrNoSuchTrial = errors.New("no such trial")
	// ErrNoSuchBlock reports that no block is active.
	ErrNoSuchBlock = errors.New("no such block")
	// ErrIndexOutOfRange matches every *IndexError.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrTrialNotInProgress is returned by End on a trial that was never
	// begun or has already ended.
	ErrTrialNotInProgress = errors.New("trial not in progress")
	// ErrTrialAlreadyStarted is returned by Begin on a trial that is not in
	// the NotStarted state.
	ErrTrialAlreadyStarted = errors.New("trial already started")
)

// IndexError describes a 1-based lookup outside a collection.
type IndexError struct {
	Kind  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s %d out of range [1, %d]", e.Kind, e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}
