package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trialrec/internal/config"
	"trialrec/internal/experiment"
	"trialrec/internal/journal"
	"trialrec/internal/logging"
	"trialrec/internal/notifications"
	"trialrec/internal/orchestrator"
	"trialrec/internal/textutil"
)

type simulateOptions struct {
	experiment  string
	participant string
	blocks      int
	trials      int
	samples     int
	trackers    []string
	interval    time.Duration
	copyFile    string
	seed        uint64
}

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted session with a synthetic capture source",
		Long: `Run a complete session through the real orchestrator and I/O worker.

Each trial records synthetic position/rotation samples for every tracker and
fills custom result columns with random values. Use it to check folder layout,
permissions, and free space on a lab machine before a participant arrives.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if opts.blocks < 0 || opts.trials < 0 || opts.samples < 0 {
				return errors.New("blocks, trials, and samples must not be negative")
			}
			if name := strings.TrimSpace(opts.experiment); name != "" {
				sanitized := textutil.SanitizeFileName(name)
				if sanitized == "" {
					return fmt.Errorf("invalid experiment name %q", name)
				}
				cfg.Session.ExperimentName = sanitized
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulation(runCtx, cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.experiment, "experiment", "", "Experiment name (defaults to session.experiment_name)")
	cmd.Flags().StringVarP(&opts.participant, "participant", "p", "", "Participant/session id (random when empty)")
	cmd.Flags().IntVar(&opts.blocks, "blocks", 2, "Number of blocks")
	cmd.Flags().IntVar(&opts.trials, "trials", 3, "Trials per block")
	cmd.Flags().IntVar(&opts.samples, "samples", 10, "Movement samples per tracker per trial")
	cmd.Flags().StringSliceVar(&opts.trackers, "tracker", []string{"Hand"}, "Tracked object name (repeatable)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Delay between samples (0 records as fast as possible)")
	cmd.Flags().StringVar(&opts.copyFile, "copy", "", "File to copy into the session folder")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "Random seed for synthetic data")
	return cmd
}

func runSimulation(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts simulateOptions) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithNotifier(notifications.NewService(cfg)),
	}
	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		orchOpts = append(orchOpts, orchestrator.WithRecorder(store))
	}

	orch, err := orchestrator.New(cfg, orchOpts...)
	if err != nil {
		return err
	}

	trackers := make([]*experiment.Tracker, 0, len(opts.trackers))
	for _, name := range opts.trackers {
		if name = strings.TrimSpace(name); name != "" {
			trackers = append(trackers, experiment.NewTracker(name))
		}
	}

	session, err := orch.Init(ctx, orchestrator.Params{
		SessionID: opts.participant,
		Trackers:  trackers,
	})
	if err != nil {
		return err
	}
	for range opts.blocks {
		session.CreateBlock(opts.trials)
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	runErr := simulateTrials(ctx, orch, trackers, cfg.Session.CustomHeaders, opts, rng)

	if opts.copyFile != "" {
		if err := orch.CopyFile(opts.copyFile, ""); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if err := orch.WriteJSON("simulation", map[string]any{
		"blocks":   opts.blocks,
		"trials":   opts.trials,
		"samples":  opts.samples,
		"trackers": opts.trackers,
		"seed":     opts.seed,
	}); err != nil {
		runErr = errors.Join(runErr, err)
	}

	if err := orch.EndExperiment(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := orch.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	stats := orch.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s recorded %d trials\n", session.ID, session.TrialCount())
	fmt.Fprintf(out, "Session folder: %s\n", orch.SessionDir())
	fmt.Fprintf(out, "Results: %s\n", orch.ResultsPath())
	fmt.Fprintf(out, "File commands: %d processed, %d failed\n", stats.Processed, stats.Failed)
	if stats.Failed > 0 {
		fmt.Fprintln(out, "Run `trialrec journal --failed` for details")
	}
	return runErr
}

func simulateTrials(
	ctx context.Context,
	orch *orchestrator.Orchestrator,
	trackers []*experiment.Tracker,
	customHeaders []string,
	opts simulateOptions,
	rng *rand.Rand,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		trial, err := orch.BeginNextTrial()
		if errors.Is(err, experiment.ErrNoSuchTrial) {
			return nil
		}
		if err != nil {
			return err
		}

		start := time.Now()
		for frame := range opts.samples {
			elapsed := time.Since(start).Seconds()
			for i, tracker := range trackers {
				tracker.Record(syntheticSample(rng, elapsed, frame, i)...)
			}
			if opts.interval > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(opts.interval):
				}
			}
		}
		for _, header := range customHeaders {
			trial.Results.Set(header, math.Round(rng.Float64()*1000)/1000)
		}
		if err := orch.EndTrial(trial); err != nil {
			return err
		}
	}
}

func syntheticSample(rng *rand.Rand, elapsed float64, frame, object int) []float64 {
	phase := float64(frame)/10 + float64(object)
	return []float64{
		elapsed,
		math.Sin(phase) + rng.NormFloat64()*0.01,
		1.2 + rng.NormFloat64()*0.01,
		math.Cos(phase) + rng.NormFloat64()*0.01,
		0,
		math.Mod(phase*30, 360),
		0,
	}
}
