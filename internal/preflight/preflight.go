package preflight

import (
	"context"

	"ingestor/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
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
		CheckFreeSpace("Knowledge store space", cfg.Paths.DataDir, int64(cfg.Storage.MinFreeMiB)),
	}

	if cfg.Inbox.Enabled {
		results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Inbox.Dir))
	}

	if cfg.NATS.URL != "" {
		results = append(results, CheckNATS(ctx, cfg.NATS.URL))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
