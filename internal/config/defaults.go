package config

const (
	defaultVideosDir              = "data/raw/videos"
	defaultFramesDir              = "data/frames"
	defaultKeypointsDir           = "data/keypoints"
	defaultStateDir               = "~/.local/share/signprep"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultRateNumerator          = 12
	defaultRateDenominator        = 4
	defaultFrameSize              = 256
	defaultPoseBackend            = PoseBackendProcess
	defaultPoseCommand            = "signprep-pose-worker"
	defaultPoseGRPCTarget         = "127.0.0.1:50051"
	defaultModelComplexity        = 2
	defaultMinDetectionConfidence = 0.5
	defaultYouTubeBatchSize       = 50
	defaultRequestsPerSecond      = 5.0
	defaultVerifyInput            = "utils/video_links.txt"
	defaultVerifyOutput           = "utils/video_urls_titles.csv"
	defaultVerifyMissingOutput    = "utils/video_ids_missing.txt"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"

	// MaxYouTubeBatchSize is the per-request id limit documented by the Data API.
	MaxYouTubeBatchSize = 50
)

// Pose backend identifiers.
const (
	PoseBackendProcess = "process"
	PoseBackendGRPC    = "grpc"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideosDir:    defaultVideosDir,
			FramesDir:    defaultFramesDir,
			KeypointsDir: defaultKeypointsDir,
			StateDir:     defaultStateDir,
		},
		Sampler: Sampler{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			RateNumerator:   defaultRateNumerator,
			RateDenominator: defaultRateDenominator,
			Size:            defaultFrameSize,
		},
		Pose: Pose{
			Backend:                defaultPoseBackend,
			Command:                defaultPoseCommand,
			GRPCTarget:             defaultPoseGRPCTarget,
			StaticImageMode:        true,
			ModelComplexity:        defaultModelComplexity,
			MinDetectionConfidence: defaultMinDetectionConfidence,
		},
		YouTube: YouTube{
			BatchSize:         defaultYouTubeBatchSize,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Verify: Verify{
			Input:         defaultVerifyInput,
			Output:        defaultVerifyOutput,
			MissingOutput: defaultVerifyMissingOutput,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
