// Package orchestrator owns a recording session: its directory layout, the
// session/block/trial state, and every file command sent to the I/O worker.
//
// Callers interact only with the Orchestrator. Init lays out
// <experiment_root>/<experiment>/<session>/, loads the shared settings.json,
// fixes the results header row, and starts the worker. Trial control
// (BeginTrial, EndTrial, BeginNextTrial) runs on the caller's goroutine and
// never waits on disk: movement samples, metadata dumps, copies and the final
// results file are snapshotted into commands and queued. EndExperiment is
// idempotent and also runs from Close when end_on_close is set.
package orchestrator
