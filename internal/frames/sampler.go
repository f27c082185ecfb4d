package frames

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"signprep/internal/fileutil"
	"signprep/internal/services"
)

// FramePattern is the output name pattern handed to the transcoder.
const FramePattern = "%04d.jpg"

// MaxFixedWidthFrames is the largest frame count whose names still sort
// chronologically with FramePattern.
const MaxFixedWidthFrames = 9999

// Sampler extracts frames from a video into outDir and returns the JPEG
// paths present in outDir afterwards, sorted by name.
type Sampler interface {
	Sample(ctx context.Context, videoPath, outDir string, rate Rate, size int) ([]string, error)
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpegSampler implements Sampler by running ffmpeg.
type FFmpegSampler struct {
	binary string
	run    commandRunner
}

// SamplerOption customizes an FFmpegSampler.
type SamplerOption func(*FFmpegSampler)

// WithCommandRunner injects a custom command runner (primarily for tests).
func WithCommandRunner(r commandRunner) SamplerOption {
	return func(s *FFmpegSampler) {
		if r != nil {
			s.run = r
		}
	}
}

// NewFFmpegSampler constructs a sampler that invokes binary (default "ffmpeg").
func NewFFmpegSampler(binary string, opts ...SamplerOption) *FFmpegSampler {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	s := &FFmpegSampler{binary: binary, run: defaultCommandRunner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Args returns the ffmpeg argument list used for one video.
func Args(videoPath, outDir string, rate Rate, size int) []string {
	filter := fmt.Sprintf("fps=%s,scale=%d:%d:flags=lanczos", rate, size, size)
	return []string{"-y", "-i", videoPath, "-vf", filter, filepath.Join(outDir, FramePattern)}
}

// Sample runs ffmpeg for one video. On a non-zero exit the returned error
// wraps services.ErrExternalTool and carries ffmpeg's combined output.
func (s *FFmpegSampler) Sample(ctx context.Context, videoPath, outDir string, rate Rate, size int) ([]string, error) {
	output, err := s.run(ctx, s.binary, Args(videoPath, outDir, rate, size)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, services.Wrap(services.ErrTimeout, services.StageFrames, "ffmpeg", "timed out sampling "+filepath.Base(videoPath), ctxErr)
			}
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, services.StageFrames, "ffmpeg", diagnostics(output), err)
	}
	frames, err := fileutil.ListByExt(outDir, "jpg")
	if err != nil {
		return nil, fmt.Errorf("list frames in %s: %w", outDir, err)
	}
	return frames, nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// diagnostics keeps the tail of ffmpeg output, where the actual error lives.
func diagnostics(output []byte) string {
	const maxLines = 12
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "no diagnostic output"
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
