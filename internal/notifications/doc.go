// Package notifications delivers session events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Events cover the
// two moments an operator cares about while a participant is in the room: a
// session finished writing its files, or a file operation failed.
//
// Only the file I/O worker publishes, so a slow or unreachable ntfy server
// never stalls trial control.
package notifications
