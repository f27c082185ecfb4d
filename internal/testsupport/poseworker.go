package testsupport

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
)

// FakePoseWorkerEnv switches a test binary into fake pose worker mode when
// set to "1". Packages that need a worker process call MaybeRunFakePoseWorker
// from TestMain and point pose.command at os.Args[0].
const FakePoseWorkerEnv = "SIGNPREP_FAKE_POSE_WORKER"

// FakePoseThreshold is the red-channel level of the first pixel at or above
// which the fake worker reports a pose.
const FakePoseThreshold = 35

// MaybeRunFakePoseWorker serves the pose protocol on stdin/stdout and exits
// when FakePoseWorkerEnv is set; otherwise it returns immediately.
func MaybeRunFakePoseWorker() {
	if os.Getenv(FakePoseWorkerEnv) != "1" {
		return
	}
	if err := RunFakePoseWorker(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	os.Exit(0)
}

// UseFakePoseWorker configures the environment so that launching the current
// test binary behaves as a pose worker.
func UseFakePoseWorker(t testing.TB) (string, []string) {
	t.Helper()
	t.Setenv(FakePoseWorkerEnv, "1")
	return os.Args[0], nil
}

// FakeLandmarks returns the deterministic 33x4 landmarks the fake worker
// reports for every detected frame.
func FakeLandmarks() [][]float64 {
	rows := make([][]float64, 33)
	for i := range rows {
		rows[i] = []float64{0.1 + 0.02*float64(i), 0.2 + 0.01*float64(i), -0.1, 0.9}
	}
	return rows
}

type fakeRequest struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Pixels string `json:"pixels"`
}

// RunFakePoseWorker answers init with ready and detect with a result that is
// positive when the first pixel is bright enough.
func RunFakePoseWorker(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	encoder := json.NewEncoder(out)
	for scanner.Scan() {
		var req fakeRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return fmt.Errorf("decode request: %w", err)
		}
		var reply map[string]any
		switch req.Type {
		case "init":
			reply = map[string]any{"type": "ready"}
		case "detect":
			pixels, err := base64.StdEncoding.DecodeString(req.Pixels)
			switch {
			case err != nil:
				reply = map[string]any{"type": "error", "message": err.Error()}
			case req.Format != "rgb24" || len(pixels) != req.Width*req.Height*3 || len(pixels) < 3:
				reply = map[string]any{"type": "error", "message": "bad frame"}
			case pixels[0] >= FakePoseThreshold:
				reply = map[string]any{"type": "result", "detected": true, "landmarks": FakeLandmarks()}
			default:
				reply = map[string]any{"type": "result", "detected": false}
			}
		default:
			reply = map[string]any{"type": "error", "message": "unknown request " + req.Type}
		}
		if err := encoder.Encode(reply); err != nil {
			return err
		}
	}
	return scanner.Err()
}
