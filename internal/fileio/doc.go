// Package fileio moves every disk write of a recording session off the
// trial-control path.
//
// Producers build immutable Command values (CopyFile, WriteTrials, WriteJSON,
// WriteMovementData, Quit) and hand them to a Queue, which never blocks. A
// single Worker goroutine drains the queue in FIFO order and performs the I/O.
// Failures and panics are contained at the worker boundary: they are logged,
// recorded through the optional Recorder, published through the notifier, and
// the loop moves on to the next command. Quit is a sentinel: everything
// enqueued before it has been executed when the worker exits.
package fileio
