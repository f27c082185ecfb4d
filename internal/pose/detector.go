package pose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"signprep/internal/config"
)

// ErrProtocol marks a backend reply that does not follow the pose protocol.
var ErrProtocol = errors.New("pose protocol violation")

// Detector estimates body landmarks for a single image. It returns nil, nil
// when the image contains no detectable pose.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*LandmarkSet, error)
	Close() error
}

// Options configures the pose model once per run.
type Options struct {
	StaticImageMode        bool    `json:"static_image_mode"`
	ModelComplexity        int     `json:"model_complexity"`
	EnableSegmentation     bool    `json:"enable_segmentation"`
	MinDetectionConfidence float64 `json:"min_detection_confidence"`
}

// OptionsFromConfig maps the [pose] section onto model options.
func OptionsFromConfig(cfg config.Pose) Options {
	return Options{
		StaticImageMode:        cfg.StaticImageMode,
		ModelComplexity:        cfg.ModelComplexity,
		EnableSegmentation:     cfg.EnableSegmentation,
		MinDetectionConfidence: cfg.MinDetectionConfidence,
	}
}

// New builds the configured backend and initializes the model with opts.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (Detector, error) {
	timeout := time.Duration(cfg.Pose.TimeoutSeconds) * time.Second
	switch cfg.Pose.Backend {
	case config.PoseBackendProcess:
		return StartProcess(ctx, ProcessConfig{
			Command: cfg.Pose.Command,
			Args:    cfg.Pose.Args,
			Options: opts,
			Timeout: timeout,
			Logger:  logger,
		})
	case config.PoseBackendGRPC:
		return DialGRPC(ctx, cfg.Pose.GRPCTarget, opts, WithGRPCTimeout(timeout))
	default:
		return nil, fmt.Errorf("pose backend %q not supported", cfg.Pose.Backend)
	}
}
