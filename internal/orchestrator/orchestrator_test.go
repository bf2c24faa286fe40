package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"trialrec/internal/config"
	"trialrec/internal/experiment"
	"trialrec/internal/journal"
	"trialrec/internal/logging"
	"trialrec/internal/orchestrator"
	"trialrec/internal/testsupport"
)

func newOrchestrator(t *testing.T, cfg *config.Config, opts ...orchestrator.Option) (*orchestrator.Orchestrator, string) {
	t.Helper()
	logPath := filepath.Join(testsupport.BaseDir(cfg), "test.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	o, err := orchestrator.New(cfg, append([]orchestrator.Option{orchestrator.WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	return o, logPath
}

func fixedClock() func() time.Time {
	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func mustClose(t *testing.T, o *orchestrator.Orchestrator) {
	t.Helper()
	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestThreeTrialsOneTracker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)
	hand := experiment.NewTracker("Hand")

	session, err := o.Init(context.Background(), orchestrator.Params{
		SessionID: "P01",
		Trackers:  []*experiment.Tracker{hand},
		Clock:     fixedClock(),
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	session.CreateBlock(3)

	for i := 1; i <= 3; i++ {
		trial, err := o.BeginNextTrial()
		if err != nil {
			t.Fatalf("BeginNextTrial %d: %v", i, err)
		}
		if trial.Number() != i {
			t.Fatalf("expected trial %d, got %d", i, trial.Number())
		}
		if i == 2 {
			for f := 0; f < 5; f++ {
				hand.Record(float64(f), 1, 2, 3, 0, 0, 0)
			}
		}
		if err := o.EndTrial(trial); err != nil {
			t.Fatalf("EndTrial %d: %v", i, err)
		}
	}
	if _, err := o.BeginNextTrial(); !errors.Is(err, experiment.ErrNoSuchTrial) {
		t.Fatalf("expected ErrNoSuchTrial past the last trial, got %v", err)
	}
	mustClose(t, o)

	records := testsupport.ReadCSV(t, o.ResultsPath(), ',')
	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d records", len(records))
	}
	for i, record := range records {
		if len(record) != 7 {
			t.Fatalf("record %d has %d columns, want 7", i, len(record))
		}
	}
	if records[0][6] != "Hand_movement_filename" {
		t.Fatalf("unexpected tracking header %q", records[0][6])
	}
	if records[2][6] != "movement_Hand_T002.csv" {
		t.Fatalf("unexpected tracking value %q", records[2][6])
	}
	if records[1][0] != "P01" || records[3][1] != "3" {
		t.Fatalf("unexpected base values %v / %v", records[1], records[3])
	}

	movement := testsupport.ReadCSV(t, filepath.Join(o.SessionDir(), "movement_Hand_T002.csv"), ',')
	if len(movement) != 6 {
		t.Fatalf("expected header + 5 samples, got %d records", len(movement))
	}
	if movement[0][0] != "frame" || movement[0][1] != "time" {
		t.Fatalf("unexpected movement header %v", movement[0])
	}
	for _, n := range []int{1, 3} {
		rows := testsupport.ReadCSV(t, filepath.Join(o.SessionDir(), experiment.MovementFileName("Hand", n)), ',')
		if len(rows) != 1 {
			t.Fatalf("trial %d: expected header-only movement file, got %d records", n, len(rows))
		}
	}
}

func TestMissingSettingsAreCreated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, logPath := newOrchestrator(t, cfg)

	session, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P01"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if keys := session.Settings.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty settings, got %v", keys)
	}
	mustClose(t, o)

	data, err := os.ReadFile(o.SettingsPath())
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if strings.TrimSpace(string(data)) != "{}" {
		t.Fatalf("expected empty settings object, got %q", data)
	}
	logs, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logs), "WARN orchestrator: settings file missing") {
		t.Fatalf("expected settings warning, got %q", logs)
	}
}

func TestExistingSettingsFeedResults(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithCustomHeaders("response"),
		testsupport.WithSettingsToLog("target_size", "hand"),
	)
	if err := os.MkdirAll(cfg.ExperimentDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	settings := `{"target_size": 0.25, "hand": "left"}`
	if err := os.WriteFile(filepath.Join(cfg.ExperimentDir(), "settings.json"), []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}

	o, _ := newOrchestrator(t, cfg)
	session, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P02"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	block := session.CreateBlock(1)
	block.Settings.Set("hand", "right")

	trial, err := o.BeginNextTrial()
	if err != nil {
		t.Fatalf("BeginNextTrial: %v", err)
	}
	trial.Results.Set("response", 42)
	if err := o.EndTrial(trial); err != nil {
		t.Fatalf("EndTrial: %v", err)
	}
	mustClose(t, o)

	records := testsupport.ReadCSV(t, o.ResultsPath(), ',')
	want := []string{"response", "target_size", "hand"}
	if got := records[0][6:]; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected headers %v", got)
	}
	if got := strings.Join(records[1][6:], ","); got != "42,0.25,right" {
		t.Fatalf("unexpected row values %q", got)
	}
	data, err := os.ReadFile(o.SettingsPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != settings {
		t.Fatalf("existing settings were rewritten: %q", data)
	}
}

func TestZeroTrialsWritesHeaderOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCustomHeaders("rt"))
	o, _ := newOrchestrator(t, cfg)
	if _, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P03"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	mustClose(t, o)

	records := testsupport.ReadCSV(t, o.ResultsPath(), ',')
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d records", len(records))
	}
	if len(records[0]) != len(experiment.BaseHeaders)+1 {
		t.Fatalf("unexpected header %v", records[0])
	}
}

func TestReinitPreservesExistingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sessionDir := filepath.Join(cfg.ExperimentDir(), "P04")
	keep := filepath.Join(sessionDir, "calibration.txt")
	testsupport.WriteFile(t, keep, 64)

	o, logPath := newOrchestrator(t, cfg)
	if _, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P04"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P04"}); !errors.Is(err, orchestrator.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	mustClose(t, o)

	info, err := os.Stat(keep)
	if err != nil {
		t.Fatalf("existing file removed: %v", err)
	}
	if info.Size() != 64 {
		t.Fatalf("existing file modified: size %d", info.Size())
	}
	logs, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(logs), "session folder already exists") {
		t.Fatalf("expected re-init warning, got %q", logs)
	}
}

func TestEndExperimentIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)

	if err := o.EndExperiment(); err != nil {
		t.Fatalf("EndExperiment before Init should be a no-op, got %v", err)
	}

	session, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P05"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	session.CreateBlock(2)
	trial, err := o.BeginNextTrial()
	if err != nil {
		t.Fatalf("BeginNextTrial: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := o.EndExperiment(); err != nil {
			t.Fatalf("EndExperiment call %d: %v", i+1, err)
		}
	}
	if trial.Status() != experiment.StatusEnded {
		t.Fatalf("in-progress trial should be ended, got %s", trial.Status())
	}
	if _, err := o.BeginNextTrial(); !errors.Is(err, orchestrator.ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	mustClose(t, o)
	mustClose(t, o)

	records := testsupport.ReadCSV(t, o.ResultsPath(), ',')
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[2][4] != "" {
		t.Fatalf("trial that never ran should have empty start time, got %q", records[2][4])
	}
	if stats := o.Stats(); stats.Failed != 0 || stats.Dropped != 0 {
		t.Fatalf("unexpected worker stats %+v", stats)
	}
}

func TestListenerAndAutoEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)

	var events []string
	listener := orchestrator.ListenerFuncs{
		OnBegin: func(tr *experiment.Trial) { events = append(events, "begin:"+tr.Session().ID+":"+strconv.Itoa(tr.Number())) },
		OnEnd:   func(tr *experiment.Trial) { events = append(events, "end:"+strconv.Itoa(tr.Number())) },
	}
	session, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P06", Listener: listener})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	session.CreateBlock(1)
	session.CreateBlock(1)

	first, _ := session.GetTrial(1)
	second, _ := session.GetTrial(2)
	if err := o.BeginTrial(first); err != nil {
		t.Fatalf("BeginTrial first: %v", err)
	}
	if !o.InTrial() {
		t.Fatal("expected InTrial after begin")
	}
	if err := o.BeginTrial(second); err != nil {
		t.Fatalf("BeginTrial second: %v", err)
	}
	if first.Status() != experiment.StatusEnded {
		t.Fatalf("expected first trial auto-ended, got %s", first.Status())
	}
	if session.BlockNum() != 2 {
		t.Fatalf("expected block 2 current, got %d", session.BlockNum())
	}
	if err := o.EndTrial(second); err != nil {
		t.Fatalf("EndTrial: %v", err)
	}
	if err := o.EndTrial(second); !errors.Is(err, experiment.ErrTrialNotInProgress) {
		t.Fatalf("expected ErrTrialNotInProgress on double end, got %v", err)
	}
	if err := o.BeginTrial(first); !errors.Is(err, experiment.ErrTrialAlreadyStarted) {
		t.Fatalf("expected ErrTrialAlreadyStarted, got %v", err)
	}
	mustClose(t, o)

	want := "begin:P06:1,end:1,begin:P06:2,end:2"
	if got := strings.Join(events, ","); got != want {
		t.Fatalf("unexpected events %q, want %q", got, want)
	}
}

func TestDataPassThroughs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	o, _ := newOrchestrator(t, cfg, orchestrator.WithRecorder(store))

	if err := o.WriteJSON("meta", nil); !errors.Is(err, orchestrator.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	session, err := o.Init(context.Background(), orchestrator.Params{SessionID: "P07", TrackedObjects: []string{"Head"}})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	session.CreateBlock(1)

	if err := o.SaveMovement("Head", [][]float64{{0, 1, 2, 3, 4, 5, 6}}); !errors.Is(err, experiment.ErrNoSuchTrial) {
		t.Fatalf("expected ErrNoSuchTrial before first trial, got %v", err)
	}

	src := filepath.Join(testsupport.BaseDir(cfg), "stimulus.png")
	testsupport.WriteFile(t, src, 128)

	trial, err := o.BeginNextTrial()
	if err != nil {
		t.Fatalf("BeginNextTrial: %v", err)
	}
	samples := [][]float64{{0.1, 1, 1, 1, 0, 0, 0}, {0.2, 1, 1, 1, 0, 0, 0}}
	if err := o.SaveMovement("Head", samples); err != nil {
		t.Fatalf("SaveMovement: %v", err)
	}
	samples[0][0] = 99

	meta := map[string]any{"device": "hmd", "ipd": []any{63.5}}
	if err := o.WriteJSON("participant_details", meta); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	meta["device"] = "changed"

	if err := o.CopyFile(src, ""); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if err := o.CopyFile(filepath.Join(testsupport.BaseDir(cfg), "missing.png"), "missing.png"); err != nil {
		t.Fatalf("CopyFile missing: %v", err)
	}
	if err := o.EndTrial(trial); err != nil {
		t.Fatalf("EndTrial: %v", err)
	}
	mustClose(t, o)

	dir := o.SessionDir()
	movement := testsupport.ReadCSV(t, filepath.Join(dir, "movement_Head_T001.csv"), ',')
	if len(movement) != 3 || movement[1][1] != "0.100000" {
		t.Fatalf("unexpected movement data %v", movement)
	}
	meta2, err := os.ReadFile(filepath.Join(dir, "participant_details.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if !strings.Contains(string(meta2), `"hmd"`) {
		t.Fatalf("metadata not snapshotted at enqueue: %s", meta2)
	}
	if _, err := os.Stat(filepath.Join(dir, "stimulus.png")); err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	records := testsupport.ReadCSV(t, o.ResultsPath(), ',')
	if records[1][6] != "movement_Head_T001.csv" {
		t.Fatalf("unexpected tracking column %v", records[1])
	}

	failed, err := store.List(context.Background(), journal.Filter{SessionID: "P07", FailedOnly: true})
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	if len(failed) != 1 || failed[0].Kind != "copy_file" {
		t.Fatalf("expected one failed copy in journal, got %+v", failed)
	}
	if stats := o.Stats(); stats.Failed != 1 {
		t.Fatalf("expected one failed command, got %+v", stats)
	}
}

func TestSessionIDSanitizedOrGenerated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)
	session, err := o.Init(context.Background(), orchestrator.Params{SessionID: " P 08/.. "})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if session.ID != "P_08" {
		t.Fatalf("unexpected sanitized id %q", session.ID)
	}
	mustClose(t, o)

	o2, _ := newOrchestrator(t, cfg)
	generated, err := o2.Init(context.Background(), orchestrator.Params{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(generated.ID) != 36 {
		t.Fatalf("expected uuid session id, got %q", generated.ID)
	}
	mustClose(t, o2)
}

func TestDuplicateTrackerRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)
	_, err := o.Init(context.Background(), orchestrator.Params{
		Trackers:       []*experiment.Tracker{experiment.NewTracker("Hand")},
		TrackedObjects: []string{"Hand"},
	})
	if !errors.Is(err, orchestrator.ErrDuplicateTracker) {
		t.Fatalf("expected ErrDuplicateTracker, got %v", err)
	}
}

func TestTrackersSharingMovementFileRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)
	_, err := o.Init(context.Background(), orchestrator.Params{
		Trackers: []*experiment.Tracker{
			experiment.NewTracker("Left Hand"),
			experiment.NewTracker("Left_Hand"),
		},
	})
	if !errors.Is(err, orchestrator.ErrDuplicateTracker) {
		t.Fatalf("expected ErrDuplicateTracker, got %v", err)
	}
	if o.Session() != nil {
		t.Fatal("expected no session after rejected Init")
	}
}

func TestNilTrackersAreSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)
	hand := experiment.NewTracker("Hand")

	session, err := o.Init(context.Background(), orchestrator.Params{
		SessionID: "P10",
		Trackers:  []*experiment.Tracker{nil, hand, nil},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	session.CreateBlock(1)

	trial, err := o.BeginNextTrial()
	if err != nil {
		t.Fatalf("BeginNextTrial: %v", err)
	}
	hand.Record(0, 1, 2, 3, 0, 0, 0)
	if err := o.EndTrial(trial); err != nil {
		t.Fatalf("EndTrial: %v", err)
	}
	mustClose(t, o)

	if got := strings.Join(o.Headers()[6:], ","); got != "Hand_movement_filename" {
		t.Fatalf("unexpected tracking headers %q", got)
	}
	rows := testsupport.ReadCSV(t, filepath.Join(o.SessionDir(), "movement_Hand_T001.csv"), ',')
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 sample, got %d records", len(rows))
	}
}

func TestRepeatedSaveMovementContinuesFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o, _ := newOrchestrator(t, cfg)
	session, err := o.Init(context.Background(), orchestrator.Params{
		SessionID:      "P11",
		TrackedObjects: []string{"Head"},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	session.CreateBlock(1)
	if _, err := o.BeginNextTrial(); err != nil {
		t.Fatalf("BeginNextTrial: %v", err)
	}
	for _, batch := range [][][]float64{{{0.1}, {0.2}}, {{0.3}}} {
		if err := o.SaveMovement("Head", batch, "time"); err != nil {
			t.Fatalf("SaveMovement: %v", err)
		}
	}
	mustClose(t, o)

	rows := testsupport.ReadCSV(t, filepath.Join(o.SessionDir(), "movement_Head_T001.csv"), ',')
	var frames []string
	for _, row := range rows[1:] {
		frames = append(frames, row[0])
	}
	if got := strings.Join(frames, ","); got != "0,1,2" {
		t.Fatalf("expected continuous frame numbers, got %q", got)
	}
}

func TestSecondRecorderWarnsOnLockedSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newOrchestrator(t, cfg)
	if _, err := first.Init(context.Background(), orchestrator.Params{SessionID: "P09"}); err != nil {
		t.Fatalf("Init first: %v", err)
	}

	second, logPath := newOrchestrator(t, cfg)
	if _, err := second.Init(context.Background(), orchestrator.Params{SessionID: "P09"}); err != nil {
		t.Fatalf("Init second: %v", err)
	}
	mustClose(t, second)
	mustClose(t, first)

	logs, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(logs), "session folder is in use by another process") {
		t.Fatalf("expected lock warning, got %q", logs)
	}
}
