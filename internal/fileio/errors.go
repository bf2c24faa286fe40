package fileio

import "errors"

var (
	// ErrQueueClosed is returned by Dequeue once the queue is closed and empty.
	ErrQueueClosed = errors.New("command queue closed")
	// ErrUnknownCommand reports a Command the worker has no handler for.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrRowWidth reports a result row whose width differs from its header.
	ErrRowWidth = errors.New("row width does not match header")
	// ErrSampleWidth reports a movement sample wider than its column set.
	ErrSampleWidth = errors.New("sample wider than movement columns")
	// ErrNoColumns reports a movement write without column names.
	ErrNoColumns = errors.New("movement columns required")
)
