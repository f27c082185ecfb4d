package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720,
     "avg_frame_rate": "30000/1001", "duration": "5.005", "nb_frames": "150"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio"}
  ],
  "format": {"filename": "hello.mp4", "nb_streams": 2, "duration": "5.000000", "size": "1000", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.DurationSeconds() != 5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if got := result.FrameRate(); math.Abs(got-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate: %v", got)
	}
	if got := result.ExpectedFrames(12.0 / 4.0); got != 15 {
		t.Fatalf("expected 15 frames for 5s at 3fps, got %d", got)
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", Duration: "2.5"}}}
	if result.DurationSeconds() != 2.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0"}},
		Format:  Format{Duration: "bad", Size: "-1"},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.ExpectedFrames(3) != 0 {
		t.Fatalf("expected unknown frame count, got %d", result.ExpectedFrames(3))
	}
	if result.FrameRate() != 0 {
		t.Fatalf("expected frame rate 0, got %v", result.FrameRate())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestInspectRunsBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	payload := filepath.Join(dir, "out.json")
	if err := os.WriteFile(payload, []byte(sampleJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat " + payload + "\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := Inspect(context.Background(), stub, "hello.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.Format.Filename != "hello.mp4" {
		t.Fatalf("unexpected filename %q", result.Format.Filename)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectSurfacesToolFailure(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Inspect(context.Background(), stub, "broken.mp4")
	if err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
	if want := "moov atom not found"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected %q in error, got %v", want, err)
	}
}
