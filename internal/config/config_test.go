package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"signprep/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "signprep")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if !filepath.IsAbs(cfg.Paths.VideosDir) || !strings.HasSuffix(cfg.Paths.VideosDir, filepath.Join("data", "raw", "videos")) {
		t.Fatalf("unexpected videos dir: %q", cfg.Paths.VideosDir)
	}
	if !strings.HasSuffix(cfg.Paths.FramesDir, filepath.Join("data", "frames")) {
		t.Fatalf("unexpected frames dir: %q", cfg.Paths.FramesDir)
	}
	if cfg.Sampler.RateNumerator != 12 || cfg.Sampler.RateDenominator != 4 {
		t.Fatalf("unexpected sampling rate %d/%d", cfg.Sampler.RateNumerator, cfg.Sampler.RateDenominator)
	}
	if cfg.Sampler.Size != 256 {
		t.Fatalf("unexpected frame size %d", cfg.Sampler.Size)
	}
	if cfg.Sampler.SkipExisting {
		t.Fatal("expected skip_existing disabled by default")
	}
	if cfg.Pose.Backend != config.PoseBackendProcess {
		t.Fatalf("unexpected pose backend %q", cfg.Pose.Backend)
	}
	if !cfg.Pose.StaticImageMode || cfg.Pose.ModelComplexity != 2 || cfg.Pose.MinDetectionConfidence != 0.5 {
		t.Fatalf("unexpected pose defaults: %+v", cfg.Pose)
	}
	if cfg.YouTube.BatchSize != 50 {
		t.Fatalf("unexpected batch size %d", cfg.YouTube.BatchSize)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if err := cfg.RequireYouTubeKey(); err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestLoadReadsAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("YOUTUBE_API_KEY", "  env-key ")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.YouTube.APIKey != "env-key" {
		t.Fatalf("expected api key from env, got %q", cfg.YouTube.APIKey)
	}
	if err := cfg.RequireYouTubeKey(); err != nil {
		t.Fatalf("RequireYouTubeKey returned error: %v", err)
	}
}

func TestLoadReadsAPIKeyFromDotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	workDir := t.TempDir()
	t.Chdir(workDir)
	t.Setenv("YOUTUBE_API_KEY", "")
	os.Unsetenv("YOUTUBE_API_KEY")
	if err := os.WriteFile(filepath.Join(workDir, ".env"), []byte("YOUTUBE_API_KEY=dotenv-key\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.YouTube.APIKey != "dotenv-key" {
		t.Fatalf("expected api key from .env, got %q", cfg.YouTube.APIKey)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("YOUTUBE_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "signprep.toml")

	payload := map[string]any{
		"paths": map[string]any{
			"videos_dir": filepath.Join(dir, "videos"),
			"frames_dir": filepath.Join(dir, "frames"),
		},
		"sampler": map[string]any{
			"skip_existing": true,
			"size":          128,
		},
		"pose": map[string]any{
			"backend":     "GRPC",
			"grpc_target": "pose.internal:443",
		},
		"youtube": map[string]any{
			"api_key":    "file-key",
			"batch_size": 500,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.VideosDir != filepath.Join(dir, "videos") {
		t.Fatalf("unexpected videos dir %q", cfg.Paths.VideosDir)
	}
	if !cfg.Sampler.SkipExisting || cfg.Sampler.Size != 128 {
		t.Fatalf("unexpected sampler config %+v", cfg.Sampler)
	}
	if cfg.Pose.Backend != config.PoseBackendGRPC || cfg.Pose.GRPCTarget != "pose.internal:443" {
		t.Fatalf("unexpected pose config %+v", cfg.Pose)
	}
	if cfg.YouTube.APIKey != "file-key" {
		t.Fatalf("unexpected api key %q", cfg.YouTube.APIKey)
	}
	if cfg.YouTube.BatchSize != config.MaxYouTubeBatchSize {
		t.Fatalf("expected batch size capped at %d, got %d", config.MaxYouTubeBatchSize, cfg.YouTube.BatchSize)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown backend", func(c *config.Config) { c.Pose.Backend = "onnx" }, "pose.backend"},
		{"complexity", func(c *config.Config) { c.Pose.ModelComplexity = 3 }, "model_complexity"},
		{"confidence", func(c *config.Config) { c.Pose.MinDetectionConfidence = 1.5 }, "min_detection_confidence"},
		{"rate", func(c *config.Config) { c.Sampler.RateDenominator = 0 }, "sampler.rate_denominator"},
		{"size", func(c *config.Config) { c.Sampler.Size = -1 }, "sampler.size"},
		{"batch", func(c *config.Config) { c.YouTube.BatchSize = 0 }, "youtube.batch_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[sampler]\nfps = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected parse error for unknown key")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Sampler.FFmpegBinary != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary %q", cfg.Sampler.FFmpegBinary)
	}
}

func TestEncodeMasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.YouTube.APIKey = "secret"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Fatalf("expected api key to be masked, got %s", data)
	}
	if cfg.YouTube.APIKey != "secret" {
		t.Fatal("Encode must not mutate the receiver")
	}
}
