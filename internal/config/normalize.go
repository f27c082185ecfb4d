package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSampler()
	c.normalizePose()
	c.normalizeYouTube()
	if err := c.normalizeVerify(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
		def   string
	}{
		{"paths.videos_dir", &c.Paths.VideosDir, defaultVideosDir},
		{"paths.frames_dir", &c.Paths.FramesDir, defaultFramesDir},
		{"paths.keypoints_dir", &c.Paths.KeypointsDir, defaultKeypointsDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeSampler() {
	c.Sampler.FFmpegBinary = strings.TrimSpace(c.Sampler.FFmpegBinary)
	if c.Sampler.FFmpegBinary == "" {
		c.Sampler.FFmpegBinary = defaultFFmpegBinary
	}
	c.Sampler.FFprobeBinary = strings.TrimSpace(c.Sampler.FFprobeBinary)
	if c.Sampler.FFprobeBinary == "" {
		c.Sampler.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Sampler.TimeoutSeconds < 0 {
		c.Sampler.TimeoutSeconds = 0
	}
}

func (c *Config) normalizePose() {
	c.Pose.Backend = strings.ToLower(strings.TrimSpace(c.Pose.Backend))
	if c.Pose.Backend == "" {
		c.Pose.Backend = defaultPoseBackend
	}
	if value, ok := os.LookupEnv("SIGNPREP_POSE_COMMAND"); ok && strings.TrimSpace(value) != "" {
		c.Pose.Command = strings.TrimSpace(value)
	}
	c.Pose.Command = strings.TrimSpace(c.Pose.Command)
	if c.Pose.Command == "" {
		c.Pose.Command = defaultPoseCommand
	}
	c.Pose.GRPCTarget = strings.TrimSpace(c.Pose.GRPCTarget)
	if c.Pose.GRPCTarget == "" {
		c.Pose.GRPCTarget = defaultPoseGRPCTarget
	}
	if c.Pose.TimeoutSeconds < 0 {
		c.Pose.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeYouTube() {
	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	if c.YouTube.APIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.YouTube.APIKey = strings.TrimSpace(value)
		}
	}
	c.YouTube.Endpoint = strings.TrimSpace(c.YouTube.Endpoint)
	if c.YouTube.BatchSize <= 0 {
		c.YouTube.BatchSize = defaultYouTubeBatchSize
	}
	if c.YouTube.BatchSize > MaxYouTubeBatchSize {
		c.YouTube.BatchSize = MaxYouTubeBatchSize
	}
	if c.YouTube.RequestsPerSecond < 0 {
		c.YouTube.RequestsPerSecond = 0
	}
	if c.YouTube.TimeoutSeconds < 0 {
		c.YouTube.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeVerify() error {
	var err error
	if strings.TrimSpace(c.Verify.Input) == "" {
		c.Verify.Input = defaultVerifyInput
	}
	if c.Verify.Input, err = expandPath(strings.TrimSpace(c.Verify.Input)); err != nil {
		return fmt.Errorf("verify.input: %w", err)
	}
	if strings.TrimSpace(c.Verify.Output) == "" {
		c.Verify.Output = defaultVerifyOutput
	}
	if c.Verify.Output, err = expandPath(strings.TrimSpace(c.Verify.Output)); err != nil {
		return fmt.Errorf("verify.output: %w", err)
	}
	// An empty missing_output disables the unresolved-id report file.
	if c.Verify.MissingOutput, err = expandPath(strings.TrimSpace(c.Verify.MissingOutput)); err != nil {
		return fmt.Errorf("verify.missing_output: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
