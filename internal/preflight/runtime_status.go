package preflight

import (
	"context"

	"signprep/internal/config"
	"signprep/internal/deps"
)

// ToolStatus pairs a dependency check with the version the tool reports.
type ToolStatus struct {
	deps.Status
	Version string
}

// CollectToolStatus checks every external binary across all stages and
// captures versions for the ones that respond to -version.
func CollectToolStatus(ctx context.Context, cfg *config.Config) []ToolStatus {
	if cfg == nil {
		return nil
	}
	statuses := deps.CheckBinaries(Requirements(cfg, ""))
	out := make([]ToolStatus, 0, len(statuses))
	for _, status := range statuses {
		tool := ToolStatus{Status: status}
		if status.Available && versionProbeable(status.Name) {
			tool.Version = deps.ToolVersion(ctx, status.Path)
		}
		out = append(out, tool)
	}
	return out
}

func versionProbeable(name string) bool {
	switch name {
	case "FFmpeg", "FFprobe":
		return true
	default:
		return false
	}
}

// Ready reports whether all non-optional tools are available.
func Ready(tools []ToolStatus) bool {
	for _, tool := range tools {
		if !tool.Available && !tool.Optional {
			return false
		}
	}
	return true
}
