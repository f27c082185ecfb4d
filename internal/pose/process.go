package pose

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"signprep/internal/logging"
	"signprep/internal/services"
)

// maxReplyBytes bounds a single worker reply line.
const maxReplyBytes = 16 << 20

// ProcessConfig describes how to launch a pose worker.
type ProcessConfig struct {
	Command string
	Args    []string
	Options Options
	// Timeout bounds each request; zero waits indefinitely.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Wire messages exchanged with the worker, one JSON object per line.
type workerRequest struct {
	Type    string   `json:"type"`
	Options *Options `json:"options,omitempty"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	Format  string   `json:"format,omitempty"`
	Pixels  string   `json:"pixels,omitempty"`
}

type workerReply struct {
	Type      string      `json:"type"`
	Detected  bool        `json:"detected"`
	Landmarks [][]float64 `json:"landmarks"`
	Message   string      `json:"message"`
}

type replyLine struct {
	data []byte
	err  error
}

// ProcessDetector talks to a long-lived worker subprocess.
type ProcessDetector struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	encoder *json.Encoder
	replies chan replyLine
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	broken error
	closed bool
	done   chan struct{}
}

// StartProcess launches the worker, sends the init message, and waits for
// the worker to report ready.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*ProcessDetector, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, services.Wrap(services.ErrConfiguration, services.StageKeypoints, "start pose worker", "command not configured", nil)
	}
	logger := logging.NewComponentLogger(cfg.Logger, "pose")

	// The worker outlives any single request, so it is not bound to ctx.
	cmd := exec.Command(command, cfg.Args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, services.StageKeypoints, "start pose worker", command, err)
	}

	d := &ProcessDetector{
		cmd:     cmd,
		stdin:   stdin,
		encoder: json.NewEncoder(stdin),
		replies: make(chan replyLine, 1),
		timeout: cfg.Timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go d.readReplies(stdout)
	go d.forwardStderr(stderr)

	opts := cfg.Options
	reply, err := d.roundTrip(ctx, workerRequest{Type: "init", Options: &opts})
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	if reply.Type != "ready" {
		_ = d.Close()
		return nil, services.Wrap(services.ErrExternalTool, services.StageKeypoints, "init pose worker",
			fmt.Sprintf("expected ready, got %q", reply.Type), ErrProtocol)
	}
	logger.Debug("pose worker ready",
		logging.String("command", command),
		logging.Int("model_complexity", opts.ModelComplexity),
		logging.Bool("static_image_mode", opts.StaticImageMode),
	)
	return d, nil
}

// Detect sends one frame to the worker.
func (d *ProcessDetector) Detect(ctx context.Context, img image.Image) (*LandmarkSet, error) {
	pixels, width, height := RGB24(img)
	reply, err := d.roundTrip(ctx, workerRequest{
		Type:   "detect",
		Width:  width,
		Height: height,
		Format: "rgb24",
		Pixels: base64.StdEncoding.EncodeToString(pixels),
	})
	if err != nil {
		return nil, err
	}
	if reply.Type != "result" {
		return nil, services.Wrap(services.ErrExternalTool, services.StageKeypoints, "detect",
			fmt.Sprintf("expected result, got %q", reply.Type), ErrProtocol)
	}
	if !reply.Detected {
		return nil, nil
	}
	set, ok := landmarkSetFromRows(reply.Landmarks)
	if !ok {
		return nil, services.Wrap(services.ErrExternalTool, services.StageKeypoints, "detect",
			fmt.Sprintf("expected %dx%d landmarks, got %d rows", NumLandmarks, NumValues, len(reply.Landmarks)), ErrProtocol)
	}
	return &set, nil
}

func (d *ProcessDetector) roundTrip(ctx context.Context, req workerRequest) (workerReply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return workerReply{}, errors.New("pose worker closed")
	}
	if d.broken != nil {
		return workerReply{}, d.broken
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.encoder.Encode(req); err != nil {
		d.broken = services.Wrap(services.ErrExternalTool, services.StageKeypoints, req.Type, "write to pose worker", err)
		return workerReply{}, d.broken
	}

	select {
	case line, ok := <-d.replies:
		if !ok || line.err != nil {
			cause := io.ErrUnexpectedEOF
			if ok && line.err != nil {
				cause = line.err
			}
			d.broken = services.Wrap(services.ErrExternalTool, services.StageKeypoints, req.Type, "pose worker exited", cause)
			return workerReply{}, d.broken
		}
		var reply workerReply
		if err := json.Unmarshal(line.data, &reply); err != nil {
			d.broken = services.Wrap(services.ErrExternalTool, services.StageKeypoints, req.Type, "decode worker reply", errors.Join(ErrProtocol, err))
			return workerReply{}, d.broken
		}
		if reply.Type == "error" {
			return workerReply{}, services.Wrap(services.ErrExternalTool, services.StageKeypoints, req.Type, reply.Message, nil)
		}
		return reply, nil
	case <-ctx.Done():
		// A reply may still arrive for this request; the pipe is out of
		// sync from here on, so the worker is unusable.
		_ = d.cmd.Process.Kill()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			d.broken = services.Wrap(services.ErrTimeout, services.StageKeypoints, req.Type, "pose worker did not reply in time", ctx.Err())
		} else {
			d.broken = ctx.Err()
		}
		return workerReply{}, d.broken
	}
}

func (d *ProcessDetector) readReplies(stdout io.Reader) {
	defer close(d.replies)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxReplyBytes)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		select {
		case d.replies <- replyLine{data: line}:
		case <-d.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case d.replies <- replyLine{err: err}:
		case <-d.done:
		}
	}
}

func (d *ProcessDetector) forwardStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			d.logger.Debug("pose worker stderr", logging.String("line", text))
		}
	}
}

// Close stops the worker. It closes stdin so a well-behaved worker exits,
// and kills it if it has not exited within five seconds.
func (d *ProcessDetector) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	_ = d.stdin.Close()
	waitErr := make(chan error, 1)
	go func() { waitErr <- d.cmd.Wait() }()
	select {
	case err := <-waitErr:
		if err != nil && d.broken == nil {
			return fmt.Errorf("pose worker exit: %w", err)
		}
		return nil
	case <-time.After(5 * time.Second):
		_ = d.cmd.Process.Kill()
		<-waitErr
		return errors.New("pose worker did not exit after stdin closed; killed")
	}
}
