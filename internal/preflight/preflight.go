package preflight

import (
	"context"

	"musicality/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

// RunAll executes all applicable preflight checks for the given config.
// The history check only runs when the round index is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckReadableDirectory("Runs directory", cfg.Paths.RunsDir),
		CheckDirectoryAccess("Rounds directory", cfg.Paths.RoundsDir),
	}

	state := CheckDirectoryAccess("State directory", cfg.Paths.StateDir)
	results = append(results, state)

	if cfg.History.Enabled && state.Passed {
		results = append(results, CheckHistory(ctx, cfg))
	}

	return results
}
