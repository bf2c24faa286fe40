package fileio_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"trialrec/internal/fileio"
	"trialrec/internal/logging"
	"trialrec/internal/notifications"
)

type memoryRecorder struct {
	mu       sync.Mutex
	outcomes []fileio.Outcome
}

func (r *memoryRecorder) Record(_ context.Context, outcome fileio.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *memoryRecorder) snapshot() []fileio.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fileio.Outcome(nil), r.outcomes...)
}

type memoryNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *memoryNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func runWorker(t *testing.T, opts fileio.Options, cmds ...fileio.Command) *fileio.Worker {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	q := fileio.NewQueue()
	w := fileio.NewWorker(q, opts)
	w.Start(context.Background())
	for _, cmd := range cmds {
		q.Enqueue(cmd)
	}
	q.Enqueue(fileio.Quit{})

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after quit")
	}
	return w
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestWorkerWritesTrialsWithDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "trial_results.csv")
	runWorker(t, fileio.Options{Delimiter: '\t'}, fileio.WriteTrials{
		Path:   path,
		Header: []string{"trial_num", "response"},
		Rows:   [][]string{{"1", "left"}, {"2", "has\ttab"}},
	})

	got := readFile(t, path)
	want := "trial_num\tresponse\n1\tleft\n2\t\"has\ttab\"\n"
	if got != want {
		t.Fatalf("unexpected results file:\n got %q\nwant %q", got, want)
	}
}

func TestWorkerWritesHeaderOnlyResultsForZeroRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trial_results.csv")
	runWorker(t, fileio.Options{}, fileio.WriteTrials{Path: path, Header: []string{"a", "b"}})
	if got := readFile(t, path); got != "a,b\n" {
		t.Fatalf("expected header only, got %q", got)
	}
}

func TestWorkerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	emptyPath := filepath.Join(dir, "settings.json")
	dataPath := filepath.Join(dir, "extra.json")
	runWorker(t, fileio.Options{},
		fileio.WriteJSON{Path: emptyPath},
		fileio.WriteJSON{Path: dataPath, Data: map[string]any{"n_trials": 3}},
	)

	if got := strings.TrimSpace(readFile(t, emptyPath)); got != "{}" {
		t.Fatalf("expected empty object, got %q", got)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(readFile(t, dataPath)), &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded["n_trials"] != float64(3) {
		t.Fatalf("unexpected json content %v", decoded)
	}
}

func TestWorkerAppendsMovementData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movement_Hand_T001.csv")
	cmd := fileio.WriteMovementData{
		Path:    path,
		Object:  "Hand",
		Columns: []string{"time", "pos_x"},
		Samples: [][]float64{{0.5, 1.25}, {1}},
	}
	runWorker(t, fileio.Options{FloatPrecision: 2}, cmd, cmd)

	want := "frame,time,pos_x\n0,0.50,1.25\n1,1.00,\n2,0.50,1.25\n3,1.00,\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("unexpected movement file:\n got %q\nwant %q", got, want)
	}
}

func TestWorkerMovementShortestPrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.csv")
	runWorker(t, fileio.Options{}, fileio.WriteMovementData{
		Path:    path,
		Columns: []string{"x"},
		Samples: [][]float64{{0.1}, {2}},
	})
	if got := readFile(t, path); got != "frame,x\n0,0.1\n1,2\n" {
		t.Fatalf("unexpected movement file %q", got)
	}
}

func TestWorkerContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stimulus.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	recorder := &memoryRecorder{}
	notifier := &memoryNotifier{}

	w := runWorker(t, fileio.Options{SessionID: "P01", Recorder: recorder, Notifier: notifier},
		fileio.CopyFile{Source: filepath.Join(dir, "missing.png"), Destination: filepath.Join(dir, "out", "missing.png")},
		fileio.WriteMovementData{Path: filepath.Join(dir, "bad.csv"), Columns: []string{"x"}, Samples: [][]float64{{1, 2}}},
		fileio.CopyFile{Source: src, Destination: filepath.Join(dir, "out", "stimulus.png")},
	)

	if got := readFile(t, filepath.Join(dir, "out", "stimulus.png")); got != "png" {
		t.Fatalf("expected copy after failures, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed copy should leave no destination, stat err=%v", err)
	}

	stats := w.Stats()
	if stats.Processed != 3 || stats.Failed != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	outcomes := recorder.snapshot()
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 journal outcomes, got %d", len(outcomes))
	}
	if !errors.Is(outcomes[0].Err, os.ErrNotExist) {
		t.Fatalf("expected missing source error, got %v", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, fileio.ErrSampleWidth) {
		t.Fatalf("expected sample width error, got %v", outcomes[1].Err)
	}
	if outcomes[2].Err != nil || outcomes[2].Seq != 3 || outcomes[2].SessionID != "P01" {
		t.Fatalf("unexpected final outcome %+v", outcomes[2])
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	want := []notifications.Event{notifications.EventWriteFailed, notifications.EventWriteFailed, notifications.EventSessionCompleted}
	if len(notifier.events) != len(want) {
		t.Fatalf("unexpected events %v", notifier.events)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, notifier.events[i], want[i])
		}
	}
}

func TestWorkerRejectsMisalignedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trial_results.csv")
	recorder := &memoryRecorder{}
	runWorker(t, fileio.Options{Recorder: recorder}, fileio.WriteTrials{
		Path:   path,
		Header: []string{"a", "b"},
		Rows:   [][]string{{"1"}},
	})
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no results file, stat err=%v", err)
	}
	outcomes := recorder.snapshot()
	if len(outcomes) != 1 || !errors.Is(outcomes[0].Err, fileio.ErrRowWidth) {
		t.Fatalf("expected row width failure, got %+v", outcomes)
	}
}

func TestWorkerQuitRunsEarlierCommandsAndDropsLater(t *testing.T) {
	dir := t.TempDir()
	q := fileio.NewQueue()
	before := filepath.Join(dir, "before.json")
	after := filepath.Join(dir, "after.json")
	q.Enqueue(fileio.WriteJSON{Path: before})
	q.Enqueue(fileio.Quit{})
	q.Enqueue(fileio.WriteJSON{Path: after})

	w := fileio.NewWorker(q, fileio.Options{Logger: logging.NewNop()})
	w.Start(context.Background())
	w.Wait()

	if _, err := os.Stat(before); err != nil {
		t.Fatalf("command before quit was not executed: %v", err)
	}
	if _, err := os.Stat(after); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("command after quit should not run, stat err=%v", err)
	}
	if stats := w.Stats(); stats.Processed != 1 || stats.Dropped != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestWorkerWaitWithoutStartReturns(t *testing.T) {
	w := fileio.NewWorker(fileio.NewQueue(), fileio.Options{})
	w.Wait()
}
