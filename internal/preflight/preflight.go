package preflight

import (
	"context"

	"signprep/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory and backend checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Videos directory", cfg.Paths.VideosDir),
		CheckOutputDirectory("Frames directory", cfg.Paths.FramesDir),
		CheckOutputDirectory("Keypoints directory", cfg.Paths.KeypointsDir),
		CheckOutputDirectory("State directory", cfg.Paths.StateDir),
		CheckPoseBackend(ctx, cfg),
		CheckYouTubeKey(cfg),
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
