package keypoints_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"signprep/internal/keypoints"
	"signprep/internal/pose"
	"signprep/internal/services"
	"signprep/internal/testsupport"
)

// brightnessDetector reports a pose when the top-left pixel is bright enough.
type brightnessDetector struct {
	calls int
	err   error
	nanZ  bool
}

func (d *brightnessDetector) Detect(_ context.Context, img image.Image) (*pose.LandmarkSet, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	if byte(r>>8) < testsupport.FakePoseThreshold {
		return nil, nil
	}
	var set pose.LandmarkSet
	for i := range set {
		set[i] = pose.Landmark{X: 0.5, Y: float32(i) / 40, Z: -0.2, Visibility: 0.95}
	}
	if d.nanZ {
		set[0].Z = float32(math.NaN())
	}
	return &set, nil
}

func (d *brightnessDetector) Close() error { return nil }

func TestExtractorTenFramesSevenDetected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFrames(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "hello"), 10)

	detector := &brightnessDetector{}
	extractor := keypoints.NewExtractor(cfg, detector, nil, keypoints.WithProgressOutput(io.Discard, false))
	summary, err := extractor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 1 || summary.Frames != 10 || summary.Detected != 7 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	outDir := filepath.Join(cfg.Paths.KeypointsDir, "greeting", "hello")
	f, err := os.Open(filepath.Join(outDir, keypoints.NPYFile))
	if err != nil {
		t.Fatalf("open npy: %v", err)
	}
	defer f.Close()
	shape, values, err := keypoints.ReadNPY(f)
	if err != nil {
		t.Fatalf("ReadNPY: %v", err)
	}
	if len(shape) != 3 || shape[0] != 10 || shape[1] != 33 || shape[2] != 4 {
		t.Fatalf("unexpected shape %v", shape)
	}

	data, err := os.ReadFile(filepath.Join(outDir, keypoints.JSONFile))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
	detected := 0
	for i, entry := range entries {
		if entry["frame_index"] != float64(i) {
			t.Fatalf("entry %d has frame_index %v", i, entry["frame_index"])
		}
		_, hasKeypoints := entry["keypoints"]
		if entry["detected"] == true {
			detected++
			if !hasKeypoints {
				t.Fatalf("detected entry %d lacks keypoints", i)
			}
			continue
		}
		if hasKeypoints {
			t.Fatalf("undetected entry %d has keypoints", i)
		}
		for _, v := range values[i*132 : (i+1)*132] {
			if v != 0 {
				t.Fatalf("undetected frame %d is not zero in npy", i)
			}
		}
	}
	if detected != 7 {
		t.Fatalf("expected 7 detected entries, got %d", detected)
	}
	if entries[0]["filename"] != "0001.jpg" || entries[9]["filename"] != "0010.jpg" {
		t.Fatalf("unexpected filenames %v %v", entries[0]["filename"], entries[9]["filename"])
	}
}

func TestExtractorIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFrames(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "hello"), 6)
	outDir := filepath.Join(cfg.Paths.KeypointsDir, "greeting", "hello")

	read := func() ([]byte, []byte) {
		npy, err := os.ReadFile(filepath.Join(outDir, keypoints.NPYFile))
		if err != nil {
			t.Fatal(err)
		}
		js, err := os.ReadFile(filepath.Join(outDir, keypoints.JSONFile))
		if err != nil {
			t.Fatal(err)
		}
		return npy, js
	}

	if _, err := keypoints.NewExtractor(cfg, &brightnessDetector{}, nil, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	npy1, json1 := read()
	if _, err := keypoints.NewExtractor(cfg, &brightnessDetector{}, nil, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	npy2, json2 := read()
	if !bytes.Equal(npy1, npy2) || !bytes.Equal(json1, json2) {
		t.Fatal("rerun produced different output")
	}
}

func TestExtractorSkipsEmptyDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	empty := filepath.Join(cfg.Paths.FramesDir, "greeting", "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "stray.txt"), 3)

	detector := &brightnessDetector{}
	summary, err := keypoints.NewExtractor(cfg, detector, nil, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Found != 1 || summary.Skipped != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.KeypointsDir, "greeting", "empty")); !os.IsNotExist(err) {
		t.Fatalf("no output directory should be created, stat err=%v", err)
	}
	if detector.calls != 0 {
		t.Fatalf("detector should not be called, got %d calls", detector.calls)
	}
}

func TestExtractorZeroPadsUndecodableFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := filepath.Join(cfg.Paths.FramesDir, "greeting", "hello")
	testsupport.WriteFrames(t, dir, 5)
	if err := os.WriteFile(filepath.Join(dir, "0005.jpg"), []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	detector := &brightnessDetector{}
	summary, err := keypoints.NewExtractor(cfg, detector, logger, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Frames != 5 || summary.Detected != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if detector.calls != 4 {
		t.Fatalf("corrupt frame should not reach the detector, got %d calls", detector.calls)
	}
	if strings.Contains(logs.String(), "level=ERROR") || strings.Contains(logs.String(), "level=WARN") {
		t.Fatalf("zero padding must not be reported as a problem:\n%s", logs.String())
	}
}

func TestExtractorZeroPadsNonFiniteLandmarks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFrames(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "hello"), 10)
	testsupport.WriteFrames(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "thanks"), 2)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	summary, err := keypoints.NewExtractor(cfg, &brightnessDetector{nanZ: true}, logger, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 2 || summary.Frames != 12 || summary.Detected != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	outDir := filepath.Join(cfg.Paths.KeypointsDir, "greeting", "hello")
	f, err := os.Open(filepath.Join(outDir, keypoints.NPYFile))
	if err != nil {
		t.Fatalf("open npy: %v", err)
	}
	defer f.Close()
	shape, values, err := keypoints.ReadNPY(f)
	if err != nil {
		t.Fatalf("ReadNPY: %v", err)
	}
	if shape[0] != 10 {
		t.Fatalf("unexpected shape %v", shape)
	}
	for i, v := range values {
		if v != 0 {
			t.Fatalf("value %d is %v, want zero padding", i, v)
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, keypoints.JSONFile))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry["detected"] != false {
			t.Fatalf("entry %d should be undetected: %v", i, entry)
		}
	}
	if !strings.Contains(logs.String(), "landmarks_non_finite") {
		t.Fatalf("expected non-finite warning in logs:\n%s", logs.String())
	}
}

func TestExtractorAbortsOnDetectorFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFrames(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "hello"), 3)

	boom := services.Wrap(services.ErrExternalTool, services.StageKeypoints, "detect", "pose worker exited", nil)
	_, err := keypoints.NewExtractor(cfg, &brightnessDetector{err: boom}, nil, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected detector error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.KeypointsDir, "greeting", "hello", keypoints.JSONFile)); !os.IsNotExist(statErr) {
		t.Fatal("no output should be written for the failing directory")
	}
}

func TestExtractorWarnsOnIrregularNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := filepath.Join(cfg.Paths.FramesDir, "greeting", "hello")
	testsupport.WriteFrames(t, dir, 1)
	if err := os.Rename(filepath.Join(dir, "0001.jpg"), filepath.Join(dir, "frame1.jpg")); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	if _, err := keypoints.NewExtractor(cfg, &brightnessDetector{}, logger, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "frame_name_irregular") {
		t.Fatalf("expected irregular name warning, got %s", logs.String())
	}
}

func TestInspectAcceptsExtractorOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFrames(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "hello"), 10)
	if _, err := keypoints.NewExtractor(cfg, &brightnessDetector{}, nil, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	reports, err := keypoints.Inspect(cfg.Paths.KeypointsDir, cfg.Paths.FramesDir)
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	report := reports[0]
	if !report.OK() {
		t.Fatalf("expected clean report, got %v", report.Errors)
	}
	if report.NPYFrames != 10 || report.JSONFrames != 10 || report.JPEGFrames != 10 || report.Detected != 7 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Anomalies) != 0 {
		t.Fatalf("unexpected anomalies %+v", report.Anomalies)
	}
}

func TestInspectFlagsMismatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	frameDir := filepath.Join(cfg.Paths.FramesDir, "greeting", "hello")
	testsupport.WriteFrames(t, frameDir, 4)
	if _, err := keypoints.NewExtractor(cfg, &brightnessDetector{}, nil, keypoints.WithProgressOutput(io.Discard, false)).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFrames(t, frameDir, 5)

	reports, err := keypoints.Inspect(cfg.Paths.KeypointsDir, cfg.Paths.FramesDir)
	if err != nil {
		t.Fatal(err)
	}
	if reports[0].OK() {
		t.Fatal("expected frame count mismatch to be reported")
	}
}
