// Package logging assembles structured slog loggers and formatting helpers used
// across trialrec.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standard field keys (session, trial, block,
// command) so the orchestrator and the I/O worker emit log lines with the same
// shape. WarnWithContext and ErrorWithContext enforce the event_type,
// error_hint, and impact keys on anything above INFO. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
