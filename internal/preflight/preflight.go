package preflight

import (
	"context"

	"cadence/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckGoogleCredentials(cfg.Google),
	}
	if cfg.TrackSearch.Enabled {
		results = append(results, CheckTrackSearch(ctx, cfg.TrackSearch.BaseURL, cfg.TrackSearch.AccessToken))
	}
	return results
}

// Blocking returns the failed checks that are not optional.
func Blocking(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failed = append(failed, result)
		}
	}
	return failed
}
