package frames_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"signprep/internal/frames"
	"signprep/internal/media/ffprobe"
	"signprep/internal/services"
	"signprep/internal/testsupport"
)

// fakeFFmpeg writes 15 frames into the directory of its last argument,
// records its arguments, and fails for inputs whose name contains "broken".
const fakeFFmpeg = `
for last; do :; done
echo "$@" >> "$(dirname "$0")/ffmpeg.args"
case "$3" in
  *broken*) echo "Invalid data found when processing input" >&2; exit 1 ;;
esac
dir=$(dirname "$last")
i=1
while [ $i -le 15 ]; do
  : > "$dir/$(printf '%04d' $i).jpg"
  i=$((i+1))
done
`

func fiveSecondProbe(_ context.Context, _, _ string) (ffprobe.Result, error) {
	return ffprobe.Result{Format: ffprobe.Format{Duration: "5.0"}}, nil
}

func TestArgs(t *testing.T) {
	got := frames.Args("/v/greeting/hello.mp4", "/f/greeting/hello", frames.DefaultRate, 256)
	want := []string{"-y", "-i", "/v/greeting/hello.mp4", "-vf", "fps=12/4,scale=256:256:flags=lanczos", "/f/greeting/hello/%04d.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Args = %v, want %v", got, want)
	}
	if frames.DefaultRate.FPS() != 3 {
		t.Fatalf("unexpected fps %v", frames.DefaultRate.FPS())
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteMP4Header(t, filepath.Join(root, "greeting", "hello.mp4"))
	testsupport.WriteMP4Header(t, filepath.Join(root, "numbers", "deep", "one.mp4"))
	testsupport.WriteFile(t, filepath.Join(root, "greeting", "notes.txt"), 4)
	testsupport.WriteFile(t, filepath.Join(root, "greeting", "upper.MP4"), 4)

	videos, err := frames.Discover(root)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %+v", videos)
	}
	if videos[0].Category != "greeting" || videos[0].Stem != "hello" {
		t.Fatalf("unexpected first video %+v", videos[0])
	}
	if videos[1].Category != "deep" || videos[1].Key() != "deep/one" {
		t.Fatalf("category should be the parent directory, got %+v", videos[1])
	}

	missing, err := frames.Discover(filepath.Join(root, "absent"))
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected no videos for missing root, got %v %v", missing, err)
	}
}

func TestStageSamplesHelloScenario(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithScript("ffmpeg", fakeFFmpeg))
	testsupport.WriteMP4Header(t, filepath.Join(cfg.Paths.VideosDir, "greeting", "hello.mp4"))

	var observed []frames.VideoResult
	stage := frames.NewStage(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		frames.WithProbe(fiveSecondProbe),
		frames.WithObserver(func(_ context.Context, r frames.VideoResult) { observed = append(observed, r) }),
	)
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Found != 1 || summary.Succeeded != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	result := summary.Results[0]
	if result.Frames != 15 || result.Expected != 15 {
		t.Fatalf("expected 15 frames (expected 15), got %d (%d)", result.Frames, result.Expected)
	}
	outDir := filepath.Join(cfg.Paths.FramesDir, "greeting", "hello")
	for _, name := range []string{"0001.jpg", "0015.jpg"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if len(observed) != 1 || observed[0].Video.Key() != "greeting/hello" {
		t.Fatalf("observer not invoked as expected: %+v", observed)
	}

	args, err := os.ReadFile(filepath.Join(testsupport.BaseDir(cfg), "bin", "ffmpeg.args"))
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	if !strings.Contains(string(args), "-vf fps=12/4,scale=256:256:flags=lanczos") {
		t.Fatalf("unexpected ffmpeg args %q", args)
	}
}

func TestStageContinuesAfterFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithScript("ffmpeg", fakeFFmpeg))
	testsupport.WriteMP4Header(t, filepath.Join(cfg.Paths.VideosDir, "a", "broken.mp4"))
	testsupport.WriteMP4Header(t, filepath.Join(cfg.Paths.VideosDir, "b", "fine.mp4"))

	var logs bytes.Buffer
	stage := frames.NewStage(cfg, slog.New(slog.NewTextHandler(&logs, nil)), frames.WithProbe(nil))
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	failed := summary.Results[0]
	if !errors.Is(failed.Err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", failed.Err)
	}
	if !strings.Contains(failed.Err.Error(), "Invalid data found") {
		t.Fatalf("expected ffmpeg diagnostics in error, got %v", failed.Err)
	}
	if !strings.Contains(logs.String(), "frame sampling failed") {
		t.Fatalf("expected failure to be logged, got %s", logs.String())
	}
	if summary.Results[1].Frames != 15 {
		t.Fatalf("second video should still be sampled, got %+v", summary.Results[1])
	}
}

func TestStageZeroVideos(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithScript("ffmpeg", fakeFFmpeg))
	var logs bytes.Buffer
	summary, err := frames.NewStage(cfg, slog.New(slog.NewTextHandler(&logs, nil))).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Found != 0 {
		t.Fatalf("expected no videos, got %+v", summary)
	}
	if !strings.Contains(logs.String(), "found 0 videos") {
		t.Fatalf("expected zero count log, got %s", logs.String())
	}
	if _, err := os.Stat(cfg.Paths.FramesDir); !os.IsNotExist(err) {
		t.Fatalf("frames dir should not be created, stat err=%v", err)
	}
}

type countingSampler struct {
	calls int
}

func (c *countingSampler) Sample(_ context.Context, _, outDir string, _ frames.Rate, _ int) ([]string, error) {
	c.calls++
	return []string{filepath.Join(outDir, "0001.jpg")}, nil
}

func TestStageSkipExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteMP4Header(t, filepath.Join(cfg.Paths.VideosDir, "greeting", "hello.mp4"))
	testsupport.WriteFrames(t, filepath.Join(cfg.Paths.FramesDir, "greeting", "hello"), 3)

	sampler := &countingSampler{}
	run := func() frames.Summary {
		summary, err := frames.NewStage(cfg, nil, frames.WithSampler(sampler), frames.WithProbe(nil)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		return summary
	}

	if summary := run(); summary.Skipped != 0 || sampler.calls != 1 {
		t.Fatalf("default config must always re-sample, got %+v calls=%d", summary, sampler.calls)
	}

	cfg.Sampler.SkipExisting = true
	summary := run()
	if summary.Skipped != 1 || sampler.calls != 1 {
		t.Fatalf("expected video to be skipped, got %+v calls=%d", summary, sampler.calls)
	}
	if summary.Results[0].Frames != 3 {
		t.Fatalf("skipped result should report existing frames, got %d", summary.Results[0].Frames)
	}
}

func TestStageWarnsOnFrameCountMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteMP4Header(t, filepath.Join(cfg.Paths.VideosDir, "greeting", "hello.mp4"))

	tenSecondProbe := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Format: ffprobe.Format{Duration: "10"}}, nil
	}
	var logs bytes.Buffer
	stage := frames.NewStage(cfg, slog.New(slog.NewTextHandler(&logs, nil)),
		frames.WithSampler(&countingSampler{}),
		frames.WithProbe(tenSecondProbe),
	)
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Results[0].Expected != 30 {
		t.Fatalf("expected 30 frames predicted, got %d", summary.Results[0].Expected)
	}
	if !strings.Contains(logs.String(), "frame_count_mismatch") {
		t.Fatalf("expected mismatch warning, got %s", logs.String())
	}
}

func TestStageWarnsOnNonVideoFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Paths.VideosDir, "greeting", "hello.mp4")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("definitely not a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	sampler := &countingSampler{}
	stage := frames.NewStage(cfg, slog.New(slog.NewTextHandler(&logs, nil)), frames.WithSampler(sampler), frames.WithProbe(nil))
	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(logs.String(), "unexpected_container") {
		t.Fatalf("expected container warning, got %s", logs.String())
	}
	if sampler.calls != 1 {
		t.Fatal("non-video file should still be handed to the sampler")
	}
}

func TestStageStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteMP4Header(t, filepath.Join(cfg.Paths.VideosDir, "greeting", "hello.mp4"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := frames.NewStage(cfg, nil, frames.WithSampler(&countingSampler{}), frames.WithProbe(nil)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
