package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"signprep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.VideosDir = filepath.Join(base, "data", "raw", "videos")
	cfgVal.Paths.FramesDir = filepath.Join(base, "data", "frames")
	cfgVal.Paths.KeypointsDir = filepath.Join(base, "data", "keypoints")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Verify.Input = filepath.Join(base, "utils", "video_links.txt")
	cfgVal.Verify.Output = filepath.Join(base, "utils", "video_urls_titles.csv")
	cfgVal.Verify.MissingOutput = filepath.Join(base, "utils", "video_ids_missing.txt")
	cfgVal.YouTube.APIKey = "test"
	cfgVal.YouTube.RequestsPerSecond = 0
	cfgVal.Logging.Dir = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithYouTubeKey sets the YouTube API key on the test config.
func WithYouTubeKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.YouTube.APIKey = key
	}
}

// WithYouTubeEndpoint points the verifier at a test server.
func WithYouTubeEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.YouTube.Endpoint = endpoint
	}
}

// WithLogDir enables file logging under the test's base directory.
func WithLogDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Logging.Dir = filepath.Join(b.baseDir, "logs")
	}
}

// WithPoseCommand overrides the pose worker command and its arguments.
func WithPoseCommand(command string, args ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pose.Backend = config.PoseBackendProcess
		b.cfg.Pose.Command = command
		b.cfg.Pose.Args = args
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			WriteScript(b.t, b.binDir(), name, "exit 0\n")
		}
		PrependPath(b.t, b.binDir())
	}
}

// WithScript writes an executable shell script named name whose body follows
// the #!/bin/sh line, and prepends its directory to PATH.
func WithScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		WriteScript(b.t, b.binDir(), name, body)
		PrependPath(b.t, b.binDir())
	}
}

func (b *configBuilder) binDir() string {
	dir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	return dir
}

// WriteScript creates an executable /bin/sh script at dir/name.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// PrependPath puts dir first on PATH for the remainder of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
