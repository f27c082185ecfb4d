package keypoints

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"signprep/internal/config"
	"signprep/internal/fileutil"
	"signprep/internal/logging"
	"signprep/internal/pose"
	"signprep/internal/services"
)

// maxFixedWidthFrames is the largest frame count whose 4-digit names sort
// chronologically.
const maxFixedWidthFrames = 9999

var frameNamePattern = regexp.MustCompile(`^\d{4}\.jpg$`)

// FrameDir is a <category>/<video> directory of sampled frames.
type FrameDir struct {
	Path     string
	Category string
	Name     string
	Frames   []string
}

// Key returns the <category>/<video> label.
func (d FrameDir) Key() string {
	return d.Category + "/" + d.Name
}

// OutputDir returns the keypoint directory for d under keypointsRoot.
func (d FrameDir) OutputDir(keypointsRoot string) string {
	return filepath.Join(keypointsRoot, d.Category, d.Name)
}

// DiscoverFrameDirs returns exactly the directories at depth two below root,
// each with its JPEGs sorted lexically. Directories without JPEGs are
// returned too, with no frames, so callers can report them.
func DiscoverFrameDirs(root string) ([]FrameDir, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*", "*"))
	if err != nil {
		return nil, fmt.Errorf("discover frame directories: %w", err)
	}
	sort.Strings(matches)
	var dirs []FrameDir
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		frames, err := fileutil.ListByExt(match, "jpg")
		if err != nil {
			return nil, fmt.Errorf("list frames in %s: %w", match, err)
		}
		dirs = append(dirs, FrameDir{
			Path:     match,
			Category: filepath.Base(filepath.Dir(match)),
			Name:     filepath.Base(match),
			Frames:   frames,
		})
	}
	return dirs, nil
}

// DirResult is the outcome of one frame directory.
type DirResult struct {
	Dir      FrameDir
	OutDir   string
	Frames   int
	Detected int
	Skipped  bool
}

// Summary reports the outcome of an extraction run.
type Summary struct {
	Found     int
	Processed int
	Skipped   int
	Frames    int
	Detected  int
	Results   []DirResult
}

// Extractor runs a pose detector over every frame directory.
type Extractor struct {
	cfg      *config.Config
	logger   *slog.Logger
	detector pose.Detector
	progress io.Writer
	tty      bool
	observe  func(context.Context, DirResult)
}

// ExtractorOption customizes an Extractor.
type ExtractorOption func(*Extractor)

// WithProgressOutput sets where the progress bar is drawn and whether that
// writer is a terminal. Without a terminal, progress is logged instead.
func WithProgressOutput(w io.Writer, tty bool) ExtractorOption {
	return func(e *Extractor) {
		e.progress = w
		e.tty = tty
	}
}

// WithObserver registers a callback invoked after every directory.
func WithObserver(fn func(context.Context, DirResult)) ExtractorOption {
	return func(e *Extractor) {
		e.observe = fn
	}
}

// NewExtractor builds an extractor around an initialized detector. The
// caller owns the detector and closes it.
func NewExtractor(cfg *config.Config, detector pose.Detector, logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, services.StageKeypoints),
		detector: detector,
		progress: os.Stderr,
		tty:      stderrIsTerminal(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run extracts keypoints for every frame directory. A detector failure
// aborts the run; directories finished before it keep their output.
func (e *Extractor) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	dirs, err := DiscoverFrameDirs(e.cfg.Paths.FramesDir)
	if err != nil {
		return summary, services.Wrap(services.ErrValidation, services.StageKeypoints, "discover", "", err)
	}
	summary.Found = len(dirs)
	totalFrames := 0
	for _, dir := range dirs {
		totalFrames += len(dir.Frames)
	}
	e.logger.Info(fmt.Sprintf("found %d frame directories", len(dirs)),
		logging.String("frames_dir", e.cfg.Paths.FramesDir),
		logging.Int("frames", totalFrames),
	)

	progress := newProgress(totalFrames, e.progress, e.tty, e.logger)
	defer progress.Finish()

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if len(dir.Frames) == 0 {
			summary.Skipped++
			result := DirResult{Dir: dir, Skipped: true}
			summary.Results = append(summary.Results, result)
			e.logger.Info("skipping directory without frames", logging.String("dir", dir.Path))
			if e.observe != nil {
				e.observe(ctx, result)
			}
			continue
		}

		result, err := e.processDir(ctx, dir, progress)
		if err != nil {
			return summary, err
		}
		summary.Processed++
		summary.Frames += result.Frames
		summary.Detected += result.Detected
		summary.Results = append(summary.Results, result)
		if e.observe != nil {
			e.observe(ctx, result)
		}
	}

	e.logger.Info("keypoint extraction complete",
		logging.Int("found", summary.Found),
		logging.Int("processed", summary.Processed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("frames", summary.Frames),
		logging.Int("detected", summary.Detected),
	)
	return summary, nil
}

func (e *Extractor) processDir(ctx context.Context, dir FrameDir, progress progressReporter) (DirResult, error) {
	ctx = services.WithItem(ctx, dir.Key())
	logger := logging.WithContext(ctx, e.logger)
	outDir := dir.OutputDir(e.cfg.Paths.KeypointsDir)
	result := DirResult{Dir: dir, OutDir: outDir}

	e.warnOnFrameNames(logger, dir)
	logger.Info("extracting keypoints", logging.String("dir", dir.Path), logging.Int("frames", len(dir.Frames)))

	record := NewRecord(len(dir.Frames))
	for _, framePath := range dir.Frames {
		set, err := e.detectFrame(ctx, logger, framePath)
		if err != nil {
			return result, err
		}
		record.Add(filepath.Base(framePath), set)
		progress.Advance(dir.Key(), 1)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrValidation, services.StageKeypoints, "create output", outDir, err)
	}
	if err := writeRecord(outDir, record); err != nil {
		return result, services.Wrap(services.ErrValidation, services.StageKeypoints, "write output", outDir, err)
	}

	result.Frames = len(record.Frames)
	result.Detected = record.Detected()
	logger.Info("saved keypoints",
		logging.String("output", outDir),
		logging.Int("frames", result.Frames),
		logging.Int("detected", result.Detected),
	)
	return result, nil
}

// detectFrame returns nil for undecodable frames and frames without a pose.
func (e *Extractor) detectFrame(ctx context.Context, logger *slog.Logger, path string) (*pose.LandmarkSet, error) {
	img, err := decodeImage(path)
	if err != nil {
		logger.Debug("frame not decodable; recording zeros", logging.String("frame", filepath.Base(path)), logging.Error(err))
		return nil, nil
	}
	set, err := e.detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	if set == nil {
		logger.Debug("no pose detected; recording zeros", logging.String("frame", filepath.Base(path)))
		return nil, nil
	}
	if !set.IsFinite() {
		logger.Warn("pose has non-finite landmark values; recording zeros",
			logging.Event("landmarks_non_finite"),
			logging.String("frame", filepath.Base(path)),
		)
		return nil, nil
	}
	return set, nil
}

func (e *Extractor) warnOnFrameNames(logger *slog.Logger, dir FrameDir) {
	if len(dir.Frames) > maxFixedWidthFrames {
		logger.Warn("frame count exceeds fixed-width numbering; lexical order no longer matches time order",
			logging.Event("frame_numbering_overflow"),
			logging.Int("count", len(dir.Frames)),
			logging.Int("limit", maxFixedWidthFrames),
		)
	}
	for _, frame := range dir.Frames {
		if name := filepath.Base(frame); !frameNamePattern.MatchString(name) {
			logger.Warn("frame name is not four digits; ordering may not be chronological",
				logging.Event("frame_name_irregular"),
				logging.String("frame", name),
			)
			return
		}
	}
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// writeRecord encodes keypoints.json before touching either file so an
// encoding failure leaves the previous pair intact.
func writeRecord(outDir string, record *Record) error {
	data, err := record.MarshalFrames()
	if err != nil {
		return fmt.Errorf("encode %s: %w", JSONFile, err)
	}
	npyPath := filepath.Join(outDir, NPYFile)
	if err := fileutil.WriteAtomic(npyPath, 0o644, func(w io.Writer) error {
		return WriteNPY(w, record.Shape(), record.Values)
	}); err != nil {
		return fmt.Errorf("write %s: %w", npyPath, err)
	}
	jsonPath := filepath.Join(outDir, JSONFile)
	if err := fileutil.WriteFileAtomic(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}
	return nil
}
