package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"trialrec/internal/config"
	"trialrec/internal/experiment"
	"trialrec/internal/fileio"
	"trialrec/internal/logging"
	"trialrec/internal/notifications"
	"trialrec/internal/preflight"
	"trialrec/internal/textutil"
)

const (
	settingsFileName = "settings.json"
	resultsFileName  = "trial_results.csv"
	lockFileName     = ".trialrec.lock"
)

// Params configures one session.
type Params struct {
	// SessionID names the session folder. It is sanitized; an empty or
	// unusable value is replaced by a random UUID.
	SessionID string
	// Trackers are sampled automatically while each trial is in progress and
	// flushed to movement files when it ends.
	Trackers []*experiment.Tracker
	// TrackedObjects names objects whose samples arrive through SaveMovement
	// from an external capture source.
	TrackedObjects []string
	// Listener is notified on trial begin and end.
	Listener Listener
	// Clock overrides the trial timestamp source.
	Clock func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.baseLogger = logger }
}

// WithNotifier sets the notification service used by the I/O worker.
func WithNotifier(n notifications.Service) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithRecorder sets the journal the I/O worker records command outcomes into.
func WithRecorder(r fileio.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// Orchestrator coordinates one recording session.
type Orchestrator struct {
	cfg        *config.Config
	baseLogger *slog.Logger
	logger     *slog.Logger
	notifier   notifications.Service
	recorder   fileio.Recorder

	mu          sync.Mutex
	session     *experiment.Session
	headers     experiment.Headers
	header      []string
	trackers    []*experiment.Tracker
	listener    Listener
	queue       *fileio.Queue
	worker      *fileio.Worker
	lock        *flock.Flock
	sessionDir  string
	initialized bool
	ended       bool
	closed      bool
}

// New constructs an orchestrator for cfg. Nothing touches the filesystem
// until Init.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator requires config")
	}
	o := &Orchestrator{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewNoop()
	}
	o.logger = logging.NewComponentLogger(o.baseLogger, "orchestrator")
	return o, nil
}

// ExperimentDir is <experiment_root>/<experiment>.
func (o *Orchestrator) ExperimentDir() string { return o.cfg.ExperimentDir() }

// SettingsPath is the shared settings file of the experiment.
func (o *Orchestrator) SettingsPath() string {
	return filepath.Join(o.ExperimentDir(), settingsFileName)
}

// SessionDir is the folder session files are written to. Empty before Init.
func (o *Orchestrator) SessionDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionDir
}

// ResultsPath is the results file of the session. Empty before Init.
func (o *Orchestrator) ResultsPath() string {
	dir := o.SessionDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, resultsFileName)
}

// Init prepares the session folder, loads settings, fixes the results header
// and starts the I/O worker. Problems a session can run through (an existing
// session folder, a held lock, failed preflight checks, missing settings) are
// logged as warnings; only failures that leave nowhere to write are returned.
func (o *Orchestrator) Init(ctx context.Context, p Params) (*experiment.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		return nil, ErrAlreadyInitialized
	}

	names, trackers, err := trackedNames(p)
	if err != nil {
		return nil, err
	}

	id := o.sessionID(p.SessionID)
	logger := o.logger.With(
		logging.String(logging.FieldSessionID, id),
		logging.String(logging.FieldExperiment, o.cfg.Session.ExperimentName),
	)

	experimentDir := o.ExperimentDir()
	sessionDir := filepath.Join(experimentDir, id)
	if info, statErr := os.Stat(sessionDir); statErr == nil && info.IsDir() {
		logging.WarnWithContext(logger, "session folder already exists", "session_folder_exists",
			logging.String(logging.FieldPath, sessionDir),
			logging.String(logging.FieldErrorHint, "use a new participant id to keep sessions separate"),
			logging.String(logging.FieldImpact, "files with the same name will be overwritten"),
		)
	}
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, o.cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "free space or fix permissions before the next session"),
		)
	}

	if o.cfg.Session.LockSessionDir {
		o.lock = o.acquireLock(logger, sessionDir)
	}

	o.queue = fileio.NewQueue()
	settingsPath := filepath.Join(experimentDir, settingsFileName)
	settings, exists, loadErr := loadSettings(settingsPath)
	switch {
	case loadErr != nil:
		logging.WarnWithContext(logger, "settings file unreadable; using empty settings", "settings_invalid",
			logging.Error(loadErr),
			logging.String(logging.FieldPath, settingsPath),
			logging.String(logging.FieldErrorHint, "fix the JSON in settings.json"),
			logging.String(logging.FieldImpact, "session runs without shared settings"),
		)
	case !exists:
		logging.WarnWithContext(logger, "settings file missing; creating empty settings", "settings_missing",
			logging.String(logging.FieldPath, settingsPath),
			logging.String(logging.FieldErrorHint, "add shared experiment settings to settings.json"),
			logging.String(logging.FieldImpact, "session runs without shared settings"),
		)
		o.queue.Enqueue(fileio.WriteJSON{Path: settingsPath, Data: map[string]any{}})
	}

	session := experiment.NewSession(id, settings)
	session.SetClock(p.Clock)

	o.session = session
	o.sessionDir = sessionDir
	o.trackers = trackers
	o.headers = experiment.NewHeaders(o.cfg.Session.CustomHeaders, names, o.cfg.Session.SettingsToLog)
	o.header = o.headers.All()
	o.listener = p.Listener
	if o.listener == nil {
		o.listener = nopListener{}
	}
	o.logger = logger

	o.worker = fileio.NewWorker(o.queue, fileio.Options{
		SessionID:      id,
		Experiment:     o.cfg.Session.ExperimentName,
		Logger:         o.baseLogger,
		Recorder:       o.recorder,
		Notifier:       o.notifier,
		Delimiter:      o.cfg.Delimiter(),
		FloatPrecision: o.cfg.Output.FloatPrecision,
	})
	o.worker.Start(ctx)
	o.initialized = true

	logger.Info("session initialized",
		logging.String(logging.FieldPath, sessionDir),
		logging.Int("columns", len(o.header)),
		logging.Int("tracked_objects", len(names)),
	)
	return session, nil
}

func (o *Orchestrator) sessionID(raw string) string {
	if id := textutil.SanitizeIdentifier(raw); id != "" {
		return id
	}
	id := uuid.NewString()
	if strings.TrimSpace(raw) != "" {
		logging.WarnWithContext(o.logger, "session id unusable; generated one", "session_id_generated",
			logging.String("requested", raw),
			logging.String(logging.FieldSessionID, id),
			logging.String(logging.FieldErrorHint, "use letters, digits, '-' or '_' in participant ids"),
		)
	}
	return id
}

// trackedNames validates the tracked objects and returns their names along
// with the non-nil trackers. Two names that map to the same movement file are
// rejected.
func trackedNames(p Params) ([]string, []*experiment.Tracker, error) {
	seen := make(map[string]string, len(p.Trackers)+len(p.TrackedObjects))
	names := make([]string, 0, len(p.Trackers)+len(p.TrackedObjects))
	trackers := make([]*experiment.Tracker, 0, len(p.Trackers))
	add := func(name string) error {
		file := experiment.MovementFileName(name, 1)
		if prev, dup := seen[file]; dup {
			if prev == name {
				return fmt.Errorf("%w: %q", ErrDuplicateTracker, name)
			}
			return fmt.Errorf("%w: %q and %q share movement files", ErrDuplicateTracker, prev, name)
		}
		seen[file] = name
		names = append(names, name)
		return nil
	}
	for _, tracker := range p.Trackers {
		if tracker == nil {
			continue
		}
		if err := add(tracker.Name()); err != nil {
			return nil, nil, err
		}
		trackers = append(trackers, tracker)
	}
	for _, name := range p.TrackedObjects {
		if err := add(name); err != nil {
			return nil, nil, err
		}
	}
	return names, trackers, nil
}

func (o *Orchestrator) acquireLock(logger *slog.Logger, sessionDir string) *flock.Flock {
	lockPath := filepath.Join(sessionDir, lockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		logging.WarnWithContext(logger, "session lock unavailable", "session_lock_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, lockPath),
		)
		return nil
	}
	if !ok {
		logging.WarnWithContext(logger, "session folder is in use by another process", "session_locked",
			logging.String(logging.FieldPath, lockPath),
			logging.String(logging.FieldErrorHint, "stop the other recorder or choose another participant id"),
			logging.String(logging.FieldImpact, "two recorders may interleave writes"),
		)
		return nil
	}
	return lock
}

// Session returns the active session, or nil before Init.
func (o *Orchestrator) Session() *experiment.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Headers returns the results header row fixed at Init.
func (o *Orchestrator) Headers() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.header...)
}

// InTrial reports whether a trial is in progress.
func (o *Orchestrator) InTrial() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil && o.session.InTrial()
}

// Stats reports the I/O worker counters.
func (o *Orchestrator) Stats() fileio.Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker == nil {
		return fileio.Stats{}
	}
	return o.worker.Stats()
}

func (o *Orchestrator) checkActive() error {
	if !o.initialized {
		return ErrNotInitialized
	}
	if o.ended {
		return ErrSessionEnded
	}
	return nil
}

// BeginTrial starts t. A trial still in progress is ended first.
func (o *Orchestrator) BeginTrial(t *experiment.Trial) error {
	var events []func()
	err := func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		var err error
		events, err = o.beginTrialLocked(t)
		return err
	}()
	fire(events)
	return err
}

// BeginNextTrial ends the current trial if it is in progress and begins the
// one after it. Past the last trial it returns an error matching
// experiment.ErrNoSuchTrial.
func (o *Orchestrator) BeginNextTrial() (*experiment.Trial, error) {
	var (
		events []func()
		next   *experiment.Trial
	)
	err := func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if err := o.checkActive(); err != nil {
			return err
		}
		var err error
		next, err = o.session.NextTrial()
		if err != nil {
			return err
		}
		events, err = o.beginTrialLocked(next)
		return err
	}()
	fire(events)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (o *Orchestrator) beginTrialLocked(t *experiment.Trial) ([]func(), error) {
	if err := o.checkActive(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("begin trial: %w", experiment.ErrNoSuchTrial)
	}
	if t.Session() != o.session {
		return nil, ErrForeignTrial
	}
	if t.Status() != experiment.StatusNotStarted {
		return nil, t.Begin()
	}

	var events []func()
	if current, err := o.session.CurrentTrial(); err == nil && current.Status() == experiment.StatusInProgress {
		o.logger.Info("ending trial still in progress",
			logging.Int(logging.FieldTrialNum, current.Number()),
			logging.Int("next_trial", t.Number()),
		)
		ended, err := o.endTrialLocked(current)
		if err != nil {
			return nil, err
		}
		events = append(events, ended...)
	}

	if err := t.Begin(); err != nil {
		return events, err
	}
	for _, tracker := range o.trackers {
		tracker.Start()
	}
	o.logger.Debug("trial began",
		logging.Int(logging.FieldTrialNum, t.Number()),
		logging.Int(logging.FieldBlockNum, t.Block().Number()),
	)
	listener := o.listener
	events = append(events, func() { listener.TrialBegan(t) })
	return events, nil
}

// EndTrial ends t, flushes every tracker into its movement file, and records
// the movement file names in t's results. Ending a trial that is not in
// progress fails with experiment.ErrTrialNotInProgress.
func (o *Orchestrator) EndTrial(t *experiment.Trial) error {
	var events []func()
	err := func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if err := o.checkActive(); err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("end trial: %w", experiment.ErrNoSuchTrial)
		}
		if t.Session() != o.session {
			return ErrForeignTrial
		}
		var err error
		events, err = o.endTrialLocked(t)
		return err
	}()
	fire(events)
	return err
}

func (o *Orchestrator) endTrialLocked(t *experiment.Trial) ([]func(), error) {
	if err := t.End(); err != nil {
		return nil, err
	}
	for _, tracker := range o.trackers {
		tracker.Stop()
		o.enqueueMovement(t, tracker.Name(), tracker.Columns(), tracker.Flush())
	}
	o.logger.Debug("trial ended",
		logging.Int(logging.FieldTrialNum, t.Number()),
		logging.Int(logging.FieldBlockNum, t.Block().Number()),
	)
	listener := o.listener
	return []func(){func() { listener.TrialEnded(t) }}, nil
}

// enqueueMovement takes ownership of samples.
func (o *Orchestrator) enqueueMovement(t *experiment.Trial, object string, columns []string, samples [][]float64) {
	name := experiment.MovementFileName(object, t.Number())
	t.Results.Set(experiment.TrackingHeader(object), name)
	o.queue.Enqueue(fileio.WriteMovementData{
		Path:    filepath.Join(o.sessionDir, name),
		Object:  object,
		Columns: columns,
		Samples: samples,
	})
}

// SaveMovement queues samples captured by an external source for objectName
// in the current trial. Samples are copied. With no columns,
// experiment.PositionRotationColumns is used.
func (o *Orchestrator) SaveMovement(objectName string, samples [][]float64, columns ...string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.checkActive(); err != nil {
		return err
	}
	t, err := o.session.CurrentTrial()
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		columns = experiment.PositionRotationColumns
	}
	o.enqueueMovement(t, objectName, append([]string(nil), columns...), cloneSamples(samples))
	return nil
}

// WriteJSON queues a metadata dump to <session>/<name>.json. data is copied.
func (o *Orchestrator) WriteJSON(name string, data map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.checkActive(); err != nil {
		return err
	}
	base := strings.TrimSuffix(strings.TrimSpace(name), ".json")
	safe := textutil.SanitizeFileName(base)
	if safe == "" {
		return fmt.Errorf("write json: invalid name %q", name)
	}
	o.queue.Enqueue(fileio.WriteJSON{
		Path: filepath.Join(o.sessionDir, safe+".json"),
		Data: cloneMap(data),
	})
	return nil
}

// CopyFile queues a copy of src into the session folder as dstName. An empty
// dstName keeps the source file name. A missing source is reported by the
// worker when the copy runs.
func (o *Orchestrator) CopyFile(src, dstName string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.checkActive(); err != nil {
		return err
	}
	if strings.TrimSpace(dstName) == "" {
		dstName = filepath.Base(src)
	}
	safe := textutil.SanitizeFileName(dstName)
	if safe == "" {
		return fmt.Errorf("copy file: invalid destination name %q", dstName)
	}
	o.queue.Enqueue(fileio.CopyFile{
		Source:      src,
		Destination: filepath.Join(o.sessionDir, safe),
	})
	return nil
}

// EndExperiment ends a trial still in progress, queues the results file for
// every trial and stops the worker once everything queued has been written.
// It is a no-op before Init and after the first call.
func (o *Orchestrator) EndExperiment() error {
	var events []func()
	err := func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.initialized || o.ended {
			return nil
		}
		if o.session.InTrial() {
			current, err := o.session.CurrentTrial()
			if err != nil {
				return err
			}
			events, err = o.endTrialLocked(current)
			if err != nil {
				return err
			}
		}

		o.queue.Enqueue(fileio.WriteTrials{
			Path:   filepath.Join(o.sessionDir, resultsFileName),
			Header: append([]string(nil), o.header...),
			Rows:   o.session.ResultRows(o.headers),
		})
		o.queue.Enqueue(fileio.Quit{})
		o.ended = true
		o.logger.Info("experiment ended",
			logging.Int("trials", o.session.TrialCount()),
			logging.Int("pending_commands", o.queue.Len()),
		)
		return nil
	}()
	fire(events)
	return err
}

// Close ends the experiment when end_on_close is set, waits for the worker
// to drain the queue and releases the session lock. Without end_on_close an
// active session is stopped without writing the results file. Close is safe
// to call more than once.
func (o *Orchestrator) Close() error {
	if o.cfg.Session.EndOnClose {
		if err := o.EndExperiment(); err != nil {
			return err
		}
	}

	o.mu.Lock()
	if o.closed || !o.initialized {
		o.closed = true
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	if !o.ended {
		logging.WarnWithContext(o.logger, "closing without ending the experiment", "session_not_ended",
			logging.String(logging.FieldErrorHint, "call EndExperiment or enable end_on_close"),
			logging.String(logging.FieldImpact, "results file not written"),
		)
		o.queue.Enqueue(fileio.Quit{})
		o.ended = true
	}
	worker := o.worker
	lock := o.lock
	o.lock = nil
	o.mu.Unlock()

	worker.Wait()

	if lock != nil {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(o.logger, "failed to release session lock", "session_unlock_failed", logging.Error(err))
		}
	}
	stats := worker.Stats()
	o.logger.Info("session closed",
		logging.Int("processed", stats.Processed),
		logging.Int("failed", stats.Failed),
	)
	return nil
}

func fire(events []func()) {
	for _, event := range events {
		event()
	}
}
