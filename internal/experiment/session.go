package experiment

import (
	"fmt"
	"time"
)

// Session is one participant's run through the experiment. It owns the block
// list and the active trial/block indices.
type Session struct {
	ID       string
	Settings *Settings

	blocks   []*Block
	trialNum int
	blockNum int
	now      func() time.Time
}

// NewSession creates an empty session with the given settings at the root of
// the cascade.
func NewSession(id string, settings map[string]any) *Session {
	return &Session{
		ID:       id,
		Settings: NewSettings(settings, nil),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for trial timestamps.
func (s *Session) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateBlock appends a block containing numTrials new trials.
func (s *Session) CreateBlock(numTrials int) *Block {
	b := &Block{
		session:  s,
		number:   len(s.blocks) + 1,
		Settings: NewSettings(nil, s.Settings),
	}
	for range numTrials {
		b.CreateTrial()
	}
	s.blocks = append(s.blocks, b)
	return b
}

// Blocks returns the session's blocks in order.
func (s *Session) Blocks() []*Block {
	return append([]*Block(nil), s.blocks...)
}

// Trials returns every trial in global order.
func (s *Session) Trials() []*Trial {
	out := make([]*Trial, 0, s.TrialCount())
	for _, b := range s.blocks {
		out = append(out, b.trials...)
	}
	return out
}

// TrialCount returns the total number of trials across blocks.
func (s *Session) TrialCount() int {
	n := 0
	for _, b := range s.blocks {
		n += len(b.trials)
	}
	return n
}

// TrialNum is the current 1-based trial index, 0 before the first Begin.
func (s *Session) TrialNum() int { return s.trialNum }

// BlockNum is the current 1-based block index, 0 before the first Begin.
func (s *Session) BlockNum() int { return s.blockNum }

// InTrial reports whether the current trial is in progress.
func (s *Session) InTrial() bool {
	t, err := s.CurrentTrial()
	return err == nil && t.status == StatusInProgress
}

// CurrentTrial returns the active trial, or ErrNoSuchTrial if none has begun.
func (s *Session) CurrentTrial() (*Trial, error) {
	if s.trialNum == 0 {
		return nil, fmt.Errorf("current trial: %w", ErrNoSuchTrial)
	}
	return s.GetTrial(s.trialNum)
}

// CurrentBlock returns the active block, or ErrNoSuchBlock if none has begun.
func (s *Session) CurrentBlock() (*Block, error) {
	if s.blockNum == 0 {
		return nil, fmt.Errorf("current block: %w", ErrNoSuchBlock)
	}
	return s.GetBlock(s.blockNum)
}

// GetTrial looks up a trial by 1-based global number. Numbers outside
// [1, TrialCount] yield an *IndexError.
func (s *Session) GetTrial(n int) (*Trial, error) {
	if n >= 1 {
		rem := n
		for _, b := range s.blocks {
			if rem <= len(b.trials) {
				return b.trials[rem-1], nil
			}
			rem -= len(b.trials)
		}
	}
	return nil, &IndexError{Kind: "trial", Index: n, Len: s.TrialCount()}
}

// GetBlock looks up a block by 1-based number.
func (s *Session) GetBlock(n int) (*Block, error) {
	if n < 1 || n > len(s.blocks) {
		return nil, &IndexError{Kind: "block", Index: n, Len: len(s.blocks)}
	}
	return s.blocks[n-1], nil
}

// NextTrial returns the trial after the current one without changing any
// state. Past the last trial it fails with ErrNoSuchTrial, which callers use
// to detect the end of the experiment.
func (s *Session) NextTrial() (*Trial, error) {
	t, err := s.GetTrial(s.trialNum + 1)
	if err != nil {
		return nil, fmt.Errorf("next trial: %w: %w", ErrNoSuchTrial, err)
	}
	return t, nil
}

// PrevTrial returns the trial before the current one. At (or before) the
// first trial it fails with ErrNoSuchTrial.
func (s *Session) PrevTrial() (*Trial, error) {
	t, err := s.GetTrial(s.trialNum - 1)
	if err != nil {
		return nil, fmt.Errorf("previous trial: %w: %w", ErrNoSuchTrial, err)
	}
	return t, nil
}

// FirstTrial returns trial 1.
func (s *Session) FirstTrial() (*Trial, error) {
	t, err := s.GetTrial(1)
	if err != nil {
		return nil, fmt.Errorf("first trial: %w: %w", ErrNoSuchTrial, err)
	}
	return t, nil
}

// LastTrial returns the final trial of the final block.
func (s *Session) LastTrial() (*Trial, error) {
	t, err := s.GetTrial(s.TrialCount())
	if err != nil {
		return nil, fmt.Errorf("last trial: %w: %w", ErrNoSuchTrial, err)
	}
	return t, nil
}
