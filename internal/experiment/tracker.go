package experiment

import (
	"fmt"
	"sync"

	"trialrec/internal/textutil"
)

// PositionRotationColumns is the default sample layout: a capture timestamp
// followed by position and Euler rotation components.
var PositionRotationColumns = []string{"time", "pos_x", "pos_y", "pos_z", "rot_x", "rot_y", "rot_z"}

// Tracker buffers per-frame samples for one tracked object while a trial is
// in progress. Record may be called from a capture goroutine; Flush hands the
// buffer to the caller, who then owns it.
type Tracker struct {
	name    string
	columns []string

	mu        sync.Mutex
	recording bool
	samples   [][]float64
}

// NewTracker creates a tracker. With no columns, PositionRotationColumns is used.
func NewTracker(name string, columns ...string) *Tracker {
	if len(columns) == 0 {
		columns = PositionRotationColumns
	}
	return &Tracker{
		name:    name,
		columns: append([]string(nil), columns...),
	}
}

// Name returns the tracked object's name.
func (t *Tracker) Name() string { return t.name }

// Header returns the results column for this tracker.
func (t *Tracker) Header() string { return TrackingHeader(t.name) }

// Columns returns the sample column names.
func (t *Tracker) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Start clears any stale samples and begins accepting Record calls.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = true
	t.samples = nil
}

// Stop stops accepting samples. Buffered samples remain until Flush.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = false
}

// Recording reports whether Record currently accepts samples.
func (t *Tracker) Recording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}

// Record appends a copy of sample. It returns false and drops the sample when
// the tracker is not recording.
func (t *Tracker) Record(sample ...float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recording {
		return false
	}
	t.samples = append(t.samples, append([]float64(nil), sample...))
	return true
}

// Flush returns the buffered samples and resets the buffer.
func (t *Tracker) Flush() [][]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.samples
	t.samples = nil
	return out
}

// MovementFileName is the per-trial movement file for a tracked object,
// e.g. movement_Hand_T002.csv.
func MovementFileName(objectName string, trialNum int) string {
	name := textutil.SanitizeIdentifier(objectName)
	if name == "" {
		name = "object"
	}
	return fmt.Sprintf("movement_%s_T%03d.csv", name, trialNum)
}
