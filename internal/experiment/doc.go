// Package experiment models a recording session as an ordered list of blocks,
// each an ordered list of trials.
//
// Trials are numbered globally across blocks (a trial's number is the count of
// trials in earlier blocks plus its 1-based position in its own block). The
// Session tracks which trial and block are active; index 0 means nothing has
// started yet, and asking for the current trial or block in that state yields
// ErrNoSuchTrial or ErrNoSuchBlock rather than a nil value.
//
// Each trial carries a cascading Settings view (trial, then block, then
// session) and an insertion-ordered Results map. Headers fixes the results
// file layout once per session and ResultRow renders a trial against it, so
// every emitted row has exactly len(Headers.All()) columns.
//
// Nothing in this package performs I/O or locking beyond the Tracker sample
// buffer; the orchestrator owns the session on the caller's goroutine.
package experiment
