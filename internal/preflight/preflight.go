package preflight

import (
	"context"

	"trialrec/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil || !cfg.Preflight.Enabled {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Experiment root", cfg.Paths.ExperimentRoot))

	if cfg.Preflight.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Experiment root free space", cfg.Paths.ExperimentRoot, uint64(cfg.Preflight.MinFreeMiB)))
	}

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
