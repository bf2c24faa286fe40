// Package preflight provides readiness checks for the filesystem locations a
// recording session writes to.
//
// The orchestrator runs RunAll when a session initializes and logs every
// failed check as a warning: a participant may already be seated, so a full
// disk or a read-only experiment folder is reported loudly but never stops the
// session. The CLI "config show" command displays the same results.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
