package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/h2non/filetype"

	"signprep/internal/config"
	"signprep/internal/fileutil"
	"signprep/internal/logging"
	"signprep/internal/media/ffprobe"
	"signprep/internal/services"
)

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// VideoResult is the outcome of sampling a single video.
type VideoResult struct {
	Video    Video
	OutDir   string
	Frames   int
	Expected int
	Skipped  bool
	Err      error
}

// Summary reports the outcome of a frame sampling run.
type Summary struct {
	Found     int
	Succeeded int
	Failed    int
	Skipped   int
	Results   []VideoResult
}

// TotalFrames sums the frames on disk across sampled videos.
func (s Summary) TotalFrames() int {
	total := 0
	for _, r := range s.Results {
		total += r.Frames
	}
	return total
}

// Stage runs the frame sampler over the configured videos tree.
type Stage struct {
	cfg          *config.Config
	logger       *slog.Logger
	sampler      Sampler
	probe        probeFunc
	probeEnabled bool
	observe      func(context.Context, VideoResult)
}

// StageOption customizes a Stage.
type StageOption func(*Stage)

// WithSampler replaces the ffmpeg-backed sampler.
func WithSampler(s Sampler) StageOption {
	return func(st *Stage) {
		if s != nil {
			st.sampler = s
		}
	}
}

// WithProbe overrides the duration probe. A nil probe disables the
// expected-frame-count check.
func WithProbe(fn probeFunc) StageOption {
	return func(st *Stage) {
		st.probe = fn
		st.probeEnabled = fn != nil
	}
}

// WithObserver registers a callback invoked after every video.
func WithObserver(fn func(context.Context, VideoResult)) StageOption {
	return func(st *Stage) {
		st.observe = fn
	}
}

// NewStage builds a frame sampling stage from configuration.
func NewStage(cfg *config.Config, logger *slog.Logger, opts ...StageOption) *Stage {
	st := &Stage{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, services.StageFrames),
		sampler: NewFFmpegSampler(cfg.Sampler.FFmpegBinary),
		probe:   ffprobe.Inspect,
	}
	if _, err := exec.LookPath(cfg.Sampler.FFprobeBinary); err == nil {
		st.probeEnabled = true
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

func (s *Stage) rate() Rate {
	return Rate{Frames: s.cfg.Sampler.RateNumerator, Seconds: s.cfg.Sampler.RateDenominator}
}

// Run samples every discovered video. Per-video failures are logged and
// counted; only discovery failures and cancellation are returned as errors.
func (s *Stage) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	videos, err := Discover(s.cfg.Paths.VideosDir)
	if err != nil {
		return summary, services.Wrap(services.ErrValidation, services.StageFrames, "discover", "", err)
	}
	summary.Found = len(videos)
	s.logger.Info(fmt.Sprintf("found %d videos", len(videos)),
		logging.String("videos_dir", s.cfg.Paths.VideosDir),
		logging.String("rate", s.rate().String()),
		logging.Int("size", s.cfg.Sampler.Size),
	)

	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := s.processVideo(ctx, video)
		switch {
		case result.Skipped:
			summary.Skipped++
		case result.Err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
		}
		summary.Results = append(summary.Results, result)
		if s.observe != nil {
			s.observe(ctx, result)
		}
		if result.Err != nil && ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	s.logger.Info("frame sampling complete",
		logging.Int("found", summary.Found),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("frames", summary.TotalFrames()),
	)
	return summary, nil
}

func (s *Stage) processVideo(ctx context.Context, video Video) VideoResult {
	ctx = services.WithItem(ctx, video.Key())
	logger := logging.WithContext(ctx, s.logger)
	outDir := video.OutputDir(s.cfg.Paths.FramesDir)
	result := VideoResult{Video: video, OutDir: outDir}

	if s.cfg.Sampler.SkipExisting {
		existing, err := fileutil.ListByExt(outDir, "jpg")
		if err == nil && len(existing) > 0 {
			result.Skipped = true
			result.Frames = len(existing)
			logger.Info("skipping video with existing frames",
				logging.String("video", video.Path),
				logging.Int("count", len(existing)),
			)
			return result
		}
	}

	logger.Info("sampling video", logging.String("video", video.Path), logging.String("output", outDir))
	s.sniffContainer(logger, video.Path)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		result.Err = services.Wrap(services.ErrValidation, services.StageFrames, "create output", outDir, err)
		logger.Error("frame sampling failed", logging.String("video", video.Path), logging.Error(result.Err))
		return result
	}

	sampleCtx := ctx
	if timeout := s.cfg.Sampler.TimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		sampleCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	frames, err := s.sampler.Sample(sampleCtx, video.Path, outDir, s.rate(), s.cfg.Sampler.Size)
	if err != nil {
		result.Err = err
		// Whatever ffmpeg managed to write stays on disk.
		if existing, listErr := fileutil.ListByExt(outDir, "jpg"); listErr == nil {
			result.Frames = len(existing)
		}
		logger.Error("frame sampling failed",
			logging.String("video", video.Path),
			logging.String("outcome", services.Outcome(err)),
			logging.Error(err),
		)
		return result
	}
	result.Frames = len(frames)

	logger.Info("saved frames",
		logging.String("video", video.Path),
		logging.Int("count", result.Frames),
	)
	if result.Frames == 0 {
		logger.Warn("ffmpeg produced no frames",
			logging.Event("no_frames"),
			logging.String("video", video.Path),
		)
	}
	if result.Frames > MaxFixedWidthFrames {
		logger.Warn("frame count exceeds fixed-width numbering; lexical order no longer matches time order",
			logging.Event("frame_numbering_overflow"),
			logging.Int("count", result.Frames),
			logging.Int("limit", MaxFixedWidthFrames),
		)
	}
	result.Expected = s.checkExpected(ctx, logger, video, result.Frames)
	return result
}

// checkExpected compares the on-disk frame count with duration x rate and
// returns the expected count (0 when it could not be determined).
func (s *Stage) checkExpected(ctx context.Context, logger *slog.Logger, video Video, actual int) int {
	if !s.probeEnabled || s.probe == nil {
		return 0
	}
	probed, err := s.probe(ctx, s.cfg.Sampler.FFprobeBinary, video.Path)
	if err != nil {
		logger.Debug("duration probe failed", logging.String("video", video.Path), logging.Error(err))
		return 0
	}
	expected := probed.ExpectedFrames(s.rate().FPS())
	if expected == 0 {
		return 0
	}
	logger.Debug("expected frame count",
		logging.Float64("duration_seconds", probed.DurationSeconds()),
		logging.Int("expected_frames", expected),
	)
	if diff := actual - expected; diff > 1 || diff < -1 {
		logger.Warn("frame count differs from duration x rate",
			logging.Event("frame_count_mismatch"),
			logging.String("video", video.Path),
			logging.Int("expected_frames", expected),
			logging.Int("count", actual),
		)
	}
	return expected
}

// sniffContainer warns when the file does not look like a video container.
// ffmpeg is still given the file; it may know formats the sniffer does not.
func (s *Stage) sniffContainer(logger *slog.Logger, path string) {
	head, err := readHead(path, 262)
	if err != nil {
		logger.Debug("container sniff failed", logging.String("video", path), logging.Error(err))
		return
	}
	if filetype.IsVideo(head) {
		return
	}
	kind, _ := filetype.Match(head)
	logger.Warn("file does not look like a video container",
		logging.Event("unexpected_container"),
		logging.String("video", path),
		logging.String("detected_type", kind.MIME.Value),
	)
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
