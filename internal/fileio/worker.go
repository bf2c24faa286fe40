package fileio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"

	"trialrec/internal/logging"
	"trialrec/internal/notifications"
)

// Outcome describes one executed command.
type Outcome struct {
	SessionID string
	Seq       int64
	Kind      Kind
	Target    string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Recorder persists command outcomes. It is only called from the worker
// goroutine.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Options configures a Worker.
type Options struct {
	SessionID  string
	Experiment string
	Logger     *slog.Logger
	Recorder   Recorder
	Notifier   notifications.Service
	// Delimiter separates fields in result files. Zero means ','.
	Delimiter rune
	// FloatPrecision is the number of decimals written for movement samples.
	// Zero or less writes the shortest exact representation.
	FloatPrecision int
}

// Stats summarises the work a Worker has done.
type Stats struct {
	Processed int
	Failed    int
	Dropped   int
}

// Worker executes queued commands on a single goroutine.
type Worker struct {
	queue    *Queue
	opts     Options
	logger   *slog.Logger
	notifier notifications.Service
	handle   func(Command) error

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
	began     time.Time

	seq       atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewWorker builds a worker that drains queue.
func NewWorker(queue *Queue, opts Options) *Worker {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	logger := logging.NewComponentLogger(opts.Logger, "fileio")
	if opts.SessionID != "" {
		logger = logger.With(logging.String(logging.FieldSessionID, opts.SessionID))
	}
	w := &Worker{
		queue:    queue,
		opts:     opts,
		logger:   logger,
		notifier: notifier,
		done:     make(chan struct{}),
	}
	w.handle = w.dispatch
	return w
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		w.began = time.Now()
		go func() {
			defer close(w.done)
			w.run(ctx)
		}()
	})
}

// Done is closed when the worker loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Wait blocks until the worker loop exits. It returns immediately when the
// worker was never started.
func (w *Worker) Wait() {
	if !w.started.Load() {
		return
	}
	<-w.done
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Processed: int(w.processed.Load()),
		Failed:    int(w.failed.Load()),
		Dropped:   int(w.dropped.Load()),
	}
}

func (w *Worker) run(ctx context.Context) {
	w.logger.Debug("worker started")
	for {
		cmd, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				w.logger.Info("command queue closed; worker stopped")
				return
			}
			logging.WarnWithContext(w.logger, "worker interrupted before quit", "worker_interrupted",
				logging.Error(err),
				logging.Int("pending", w.queue.Len()),
				logging.String(logging.FieldErrorHint, "session files may be incomplete"),
				logging.String(logging.FieldImpact, "queued writes were not executed"),
			)
			return
		}
		if _, ok := cmd.(Quit); ok {
			w.finish(ctx)
			return
		}
		w.execute(ctx, cmd)
	}
}

func (w *Worker) finish(ctx context.Context) {
	pending := w.queue.CloseAndDrain()
	if len(pending) > 0 {
		w.dropped.Store(int64(len(pending)))
		kinds := make([]string, 0, len(pending))
		for _, cmd := range pending {
			kinds = append(kinds, string(cmd.Kind()))
		}
		logging.WarnWithContext(w.logger, "commands enqueued after quit were dropped", "commands_dropped",
			logging.Int("dropped", len(pending)),
			logging.Any("kinds", kinds),
			logging.String(logging.FieldErrorHint, "enqueue file work before ending the experiment"),
			logging.String(logging.FieldImpact, "dropped writes are not on disk"),
		)
	}

	stats := w.Stats()
	w.logger.Info("worker stopped",
		logging.Int("processed", stats.Processed),
		logging.Int("failed", stats.Failed),
		logging.Duration("elapsed", time.Since(w.began)),
	)
	w.publish(ctx, notifications.EventSessionCompleted, notifications.Payload{
		"sessionID":  w.opts.SessionID,
		"experiment": w.opts.Experiment,
		"processed":  stats.Processed,
		"failed":     stats.Failed,
		"duration":   time.Since(w.began),
	})
}

func (w *Worker) execute(ctx context.Context, cmd Command) {
	started := time.Now()
	err := w.safeDispatch(cmd)
	elapsed := time.Since(started)

	w.processed.Add(1)
	attrs := []logging.Attr{
		logging.String(logging.FieldCommand, string(cmd.Kind())),
		logging.String(logging.FieldPath, cmd.Target()),
		logging.Duration("elapsed", elapsed),
	}
	if err != nil {
		w.failed.Add(1)
		logging.ErrorWithContext(w.logger, "file command failed", "command_failed",
			append(attrs,
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hintFor(cmd)),
			)...,
		)
		w.publish(ctx, notifications.EventWriteFailed, notifications.Payload{
			"sessionID": w.opts.SessionID,
			"operation": string(cmd.Kind()),
			"target":    cmd.Target(),
			"error":     err,
		})
	} else {
		w.logger.Debug("file command complete", logging.Args(attrs...)...)
	}

	if w.opts.Recorder == nil {
		return
	}
	outcome := Outcome{
		SessionID: w.opts.SessionID,
		Seq:       w.seq.Add(1),
		Kind:      cmd.Kind(),
		Target:    cmd.Target(),
		StartedAt: started,
		Duration:  elapsed,
		Err:       err,
	}
	if recErr := w.opts.Recorder.Record(context.WithoutCancel(ctx), outcome); recErr != nil {
		logging.WarnWithContext(w.logger, "journal record failed", "journal_record_failed",
			logging.Error(recErr),
			logging.String(logging.FieldCommand, string(cmd.Kind())),
			logging.String(logging.FieldImpact, "command outcome missing from journal"),
		)
	}
}

func (w *Worker) safeDispatch(cmd Command) (err error) {
	var pc panics.Catcher
	pc.Try(func() { err = w.handle(cmd) })
	if recovered := pc.Recovered(); recovered != nil {
		return fmt.Errorf("%s panicked: %w", cmd.Kind(), recovered.AsError())
	}
	return err
}

func (w *Worker) dispatch(cmd Command) error {
	switch c := cmd.(type) {
	case CopyFile:
		return copyFile(c)
	case WriteTrials:
		return writeTrials(c, w.opts.Delimiter)
	case WriteJSON:
		return writeJSON(c)
	case WriteMovementData:
		return writeMovementData(c, w.opts.FloatPrecision)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (w *Worker) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := w.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(w.logger, "notification failed", "notification_failed",
			logging.Error(err),
			logging.String("event", string(event)),
			logging.String(logging.FieldErrorHint, "check ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "operator not notified"),
		)
	}
}

func hintFor(cmd Command) string {
	switch cmd.(type) {
	case CopyFile:
		return "verify the source file exists and the session folder is writable"
	case WriteMovementData:
		return "check free space in the session folder"
	default:
		return "check permissions and free space in the experiment folder"
	}
}
