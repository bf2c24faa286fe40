package experiment

import (
	"fmt"
	"time"
)

// Status is a trial's lifecycle state. Transitions only move forward.
type Status int

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusEnded:
		return "ended"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Trial is one measured unit of the experiment.
type Trial struct {
	block         *Block
	numberInBlock int
	status        Status

	Settings  *Settings
	Results   *Results
	StartTime time.Time
	EndTime   time.Time
}

// Block returns the block the trial belongs to.
func (t *Trial) Block() *Block { return t.block }

// Session returns the session the trial belongs to.
func (t *Trial) Session() *Session { return t.block.session }

// NumberInBlock is the 1-based position of the trial within its block.
func (t *Trial) NumberInBlock() int { return t.numberInBlock }

// Number is the 1-based global trial number across all blocks.
func (t *Trial) Number() int {
	n := 0
	for _, b := range t.block.session.blocks {
		if b == t.block {
			return n + t.numberInBlock
		}
		n += len(b.trials)
	}
	return 0
}

// Status reports the current lifecycle state.
func (t *Trial) Status() Status { return t.status }

// Begin marks the trial in progress, stamps its start time, and makes it the
// session's current trial.
func (t *Trial) Begin() error {
	if t.status != StatusNotStarted {
		return fmt.Errorf("begin trial %d (%s): %w", t.Number(), t.status, ErrTrialAlreadyStarted)
	}
	s := t.block.session
	t.status = StatusInProgress
	t.StartTime = s.now()
	s.trialNum = t.Number()
	s.blockNum = t.block.number
	return nil
}

// End marks an in-progress trial ended and stamps its end time. Calling End on
// a trial that is not in progress fails with ErrTrialNotInProgress and leaves
// the trial untouched; use Session.InTrial to check first.
func (t *Trial) End() error {
	if t.status != StatusInProgress {
		return fmt.Errorf("end trial %d (%s): %w", t.Number(), t.status, ErrTrialNotInProgress)
	}
	t.status = StatusEnded
	t.EndTime = t.block.session.now()
	return nil
}
