package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"signprep/internal/config"
	"signprep/internal/deps"
	"signprep/internal/services"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputDirectory is like CheckDirectoryAccess but passes for a missing
// directory when its nearest existing ancestor is writable, since stages
// create their output trees on demand.
func CheckOutputDirectory(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	ancestor := filepath.Dir(path)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckYouTubeKey reports whether a YouTube Data API key is configured. The
// key is not exercised against the API because every call spends quota.
func CheckYouTubeKey(cfg *config.Config) Result {
	const name = "YouTube API key"
	if cfg == nil || strings.TrimSpace(cfg.YouTube.APIKey) == "" {
		return Result{Name: name, Detail: "missing (set YOUTUBE_API_KEY or youtube.api_key)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckPoseBackend verifies the configured pose backend can be reached: the
// worker command must resolve for the process backend and the target must
// accept TCP connections for the grpc backend.
func CheckPoseBackend(ctx context.Context, cfg *config.Config) Result {
	const name = "Pose backend"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}

	switch cfg.Pose.Backend {
	case config.PoseBackendGRPC:
		target := strings.TrimSpace(cfg.Pose.GRPCTarget)
		if target == "" {
			return Result{Name: name, Detail: "grpc target missing"}
		}
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		var dialer net.Dialer
		conn, err := dialer.DialContext(dialCtx, "tcp", target)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("grpc %s unreachable (%s)", target, summarizeDialError(err))}
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("grpc %s reachable", target)}
	default:
		command := strings.TrimSpace(cfg.Pose.Command)
		if command == "" {
			return Result{Name: name, Detail: "worker command missing"}
		}
		resolved, err := exec.LookPath(command)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("worker %q not found", command)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("process %s", resolved)}
	}
}

// Requirements returns the external binaries needed by a stage. An empty
// stage returns the union across all stages.
func Requirements(cfg *config.Config, stage string) []deps.Requirement {
	var reqs []deps.Requirement
	if stage == "" || stage == services.StageFrames {
		reqs = append(reqs,
			deps.Requirement{
				Name:        "FFmpeg",
				Command:     cfg.Sampler.FFmpegBinary,
				Description: "Required for frame sampling",
			},
			deps.Requirement{
				Name:        "FFprobe",
				Command:     cfg.Sampler.FFprobeBinary,
				Description: "Checks sampled frame counts against duration",
				Optional:    true,
			},
		)
	}
	if (stage == "" || stage == services.StageKeypoints) && cfg.Pose.Backend == config.PoseBackendProcess {
		reqs = append(reqs, deps.Requirement{
			Name:        "Pose worker",
			Command:     cfg.Pose.Command,
			Description: "Required for keypoint extraction",
		})
	}
	return reqs
}

// CheckSystemDeps evaluates the binaries a stage needs and returns a
// configuration error when a required one is missing.
func CheckSystemDeps(cfg *config.Config, stage string) ([]deps.Status, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, stage, "check dependencies", "config unavailable", nil)
	}
	return deps.Require(stage, Requirements(cfg, stage))
}

func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}
