package orchestrator

import "errors"

var (
	// ErrNotInitialized is returned by operations that need Init first.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrAlreadyInitialized is returned when Init is called twice on one orchestrator.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrSessionEnded is returned by operations after EndExperiment.
	ErrSessionEnded = errors.New("session already ended")
	// ErrDuplicateTracker reports two tracked objects with the same name.
	ErrDuplicateTracker = errors.New("duplicate tracked object")
	// ErrForeignTrial reports a trial that belongs to a different session.
	ErrForeignTrial = errors.New("trial belongs to another session")
)
