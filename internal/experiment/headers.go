package experiment

import (
	"fmt"
	"strconv"
	"time"
)

// BaseHeaders are the leading columns of every results file.
var BaseHeaders = []string{
	"session_id",
	"trial_num",
	"block_num",
	"trial_num_in_block",
	"start_time",
	"end_time",
}

// TimestampLayout renders trial start and end times.
const TimestampLayout = time.RFC3339Nano

// Headers fixes the results column layout for a session. Columns are always
// ordered base, custom, tracking, settings-to-log.
type Headers struct {
	Custom        []string
	Tracking      []string
	SettingsToLog []string
}

// NewHeaders builds the layout, deriving one tracking column per tracked
// object name. Input slices are copied.
func NewHeaders(custom, trackedObjects, settingsToLog []string) Headers {
	tracking := make([]string, 0, len(trackedObjects))
	for _, name := range trackedObjects {
		tracking = append(tracking, TrackingHeader(name))
	}
	return Headers{
		Custom:        append([]string(nil), custom...),
		Tracking:      tracking,
		SettingsToLog: append([]string(nil), settingsToLog...),
	}
}

// TrackingHeader names the results column holding a tracked object's
// movement file for each trial.
func TrackingHeader(objectName string) string {
	return objectName + "_movement_filename"
}

// All returns the full header row.
func (h Headers) All() []string {
	out := make([]string, 0, h.Len())
	out = append(out, BaseHeaders...)
	out = append(out, h.Custom...)
	out = append(out, h.Tracking...)
	out = append(out, h.SettingsToLog...)
	return out
}

// Len is the column count of the header row and of every result row.
func (h Headers) Len() int {
	return len(BaseHeaders) + len(h.Custom) + len(h.Tracking) + len(h.SettingsToLog)
}

// ResultRow renders t against h. Missing results or settings render as "".
func (t *Trial) ResultRow(h Headers) []string {
	row := make([]string, 0, h.Len())
	row = append(row,
		t.block.session.ID,
		strconv.Itoa(t.Number()),
		strconv.Itoa(t.block.number),
		strconv.Itoa(t.numberInBlock),
		formatTime(t.StartTime),
		formatTime(t.EndTime),
	)
	for _, key := range h.Custom {
		v, _ := t.Results.Get(key)
		row = append(row, FormatValue(v))
	}
	for _, key := range h.Tracking {
		v, _ := t.Results.Get(key)
		row = append(row, FormatValue(v))
	}
	for _, key := range h.SettingsToLog {
		v, _ := t.Settings.Get(key)
		row = append(row, FormatValue(v))
	}
	return row
}

// ResultRows renders every trial in global order.
func (s *Session) ResultRows(h Headers) [][]string {
	trials := s.Trials()
	rows := make([][]string, 0, len(trials))
	for _, t := range trials {
		rows = append(rows, t.ResultRow(h))
	}
	return rows
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(TimestampLayout)
}

// FormatValue renders a result or setting value as a single CSV cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return formatTime(val)
	case time.Duration:
		return strconv.FormatFloat(val.Seconds(), 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
