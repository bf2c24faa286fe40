package journal

import "time"

// Status is the result of a journaled command.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Entry is one recorded command outcome.
type Entry struct {
	ID           int64         `json:"id"`
	SessionID    string        `json:"session_id"`
	Seq          int64         `json:"seq"`
	Kind         string        `json:"kind"`
	Target       string        `json:"target,omitempty"`
	Status       Status        `json:"status"`
	ErrorMessage string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Failed reports whether the command returned an error.
func (e Entry) Failed() bool { return e.Status == StatusFailed }

// Filter narrows List results. Zero values match everything.
type Filter struct {
	SessionID  string
	FailedOnly bool
	Limit      int
}

// SessionSummary aggregates the journal entries of one session.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Commands  int       `json:"commands"`
	Failed    int       `json:"failed"`
	FirstAt   time.Time `json:"first_at"`
	LastAt    time.Time `json:"last_at"`
}
