package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the dataset directory layout and local state location.
type Paths struct {
	VideosDir    string `toml:"videos_dir"`
	FramesDir    string `toml:"frames_dir"`
	KeypointsDir string `toml:"keypoints_dir"`
	StateDir     string `toml:"state_dir"`
}

// Sampler contains configuration for frame extraction.
type Sampler struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	RateNumerator   int    `toml:"rate_numerator"`
	RateDenominator int    `toml:"rate_denominator"`
	Size            int    `toml:"size"`
	SkipExisting    bool   `toml:"skip_existing"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Pose contains configuration for the pose-estimation backend.
type Pose struct {
	Backend                string   `toml:"backend"`
	Command                string   `toml:"command"`
	Args                   []string `toml:"args"`
	GRPCTarget             string   `toml:"grpc_target"`
	StaticImageMode        bool     `toml:"static_image_mode"`
	ModelComplexity        int      `toml:"model_complexity"`
	EnableSegmentation     bool     `toml:"enable_segmentation"`
	MinDetectionConfidence float64  `toml:"min_detection_confidence"`
	TimeoutSeconds         int      `toml:"timeout_seconds"`
}

// YouTube contains configuration for the YouTube Data API.
type YouTube struct {
	APIKey            string  `toml:"api_key"`
	Endpoint          string  `toml:"endpoint"`
	BatchSize         int     `toml:"batch_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Verify contains the content verifier input and output files.
type Verify struct {
	Input         string `toml:"input"`
	Output        string `toml:"output"`
	MissingOutput string `toml:"missing_output"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for signprep.
//
// Configuration sections by subsystem:
//   - Paths: dataset directories and the state directory (history, locks)
//   - Sampler: ffmpeg frame sampling
//   - Pose: pose-estimation backend and model options
//   - YouTube: Data API access for content verification
//   - Verify: verifier input and output files
//   - Logging: log format, level, and optional log directory
type Config struct {
	Paths   Paths   `toml:"paths"`
	Sampler Sampler `toml:"sampler"`
	Pose    Pose    `toml:"pose"`
	YouTube YouTube `toml:"youtube"`
	Verify  Verify  `toml:"verify"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/signprep/config.toml")
}

// Load locates, parses, and normalizes a configuration file. The returned
// config has all path fields expanded. Stage-specific requirements (such as
// the YouTube API key) are checked by the Require* methods so commands that
// do not need them still work.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// A missing .env file is the common case.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("signprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory and, when configured, the log directory.
// Dataset directories are created by the stages that write them.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir}
	if strings.TrimSpace(c.Logging.Dir) != "" {
		dirs = append(dirs, c.Logging.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LogFilePath returns the file log output is mirrored into, or "" when
// logging.dir is unset.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Logging.Dir) == "" {
		return ""
	}
	return filepath.Join(c.Logging.Dir, "signprep.log")
}

// LockPath returns the lock file guarding concurrent runs of a stage.
func (c *Config) LockPath(stage string) string {
	return filepath.Join(c.Paths.StateDir, stage+".lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML. The API key is masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	if masked.YouTube.APIKey != "" {
		masked.YouTube.APIKey = "********"
	}
	return toml.Marshal(masked)
}
