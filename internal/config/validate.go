package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSampler(); err != nil {
		return err
	}
	if err := c.validatePose(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSampler() error {
	if err := ensurePositiveMap(map[string]int{
		"sampler.rate_numerator":   c.Sampler.RateNumerator,
		"sampler.rate_denominator": c.Sampler.RateDenominator,
		"sampler.size":             c.Sampler.Size,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePose() error {
	switch c.Pose.Backend {
	case PoseBackendProcess:
		if strings.TrimSpace(c.Pose.Command) == "" {
			return errors.New("pose.command must be set when pose.backend is \"process\"")
		}
	case PoseBackendGRPC:
		if strings.TrimSpace(c.Pose.GRPCTarget) == "" {
			return errors.New("pose.grpc_target must be set when pose.backend is \"grpc\"")
		}
	default:
		return fmt.Errorf("pose.backend: unsupported value %q (want %q or %q)", c.Pose.Backend, PoseBackendProcess, PoseBackendGRPC)
	}
	if c.Pose.ModelComplexity < 0 || c.Pose.ModelComplexity > 2 {
		return errors.New("pose.model_complexity must be 0, 1, or 2")
	}
	if c.Pose.MinDetectionConfidence < 0 || c.Pose.MinDetectionConfidence > 1 {
		return errors.New("pose.min_detection_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if c.YouTube.BatchSize < 1 || c.YouTube.BatchSize > MaxYouTubeBatchSize {
		return fmt.Errorf("youtube.batch_size must be between 1 and %d", MaxYouTubeBatchSize)
	}
	return nil
}

// RequireYouTubeKey reports a configuration error when no API key is available.
func (c *Config) RequireYouTubeKey() error {
	if strings.TrimSpace(c.YouTube.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/signprep/config.toml"
	}
	return fmt.Errorf("youtube.api_key is required. Set YOUTUBE_API_KEY (environment or .env) or edit %s (create with 'signprep config init')", defaultPath)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
