// Package journal records the outcome of every file command a session's I/O
// worker executes in a SQLite database.
//
// The journal answers the question an experimenter asks after a crash or a
// noisy session: which writes made it to disk and which did not. Only the I/O
// worker writes to it, through the fileio.Recorder interface, so trial control
// never touches the database. The CLI reads it back for per-session summaries.
//
// Schema changes bump schemaVersion in schema.go; users delete the journal to
// adopt a new schema.
package journal
