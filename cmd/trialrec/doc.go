// Command trialrec is the operator CLI for the trial recorder.
//
// It creates and inspects configuration, runs scripted sessions against the
// real orchestrator and I/O worker (useful for checking a lab machine before
// a participant arrives), and reads the command journal back as tables or
// JSON.
package main
