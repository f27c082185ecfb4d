// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The frame sampler uses it to predict how many frames a video should yield
// at the configured sampling rate, which makes a short or truncated ffmpeg
// run visible in the logs.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties
//   - Format: container-level metadata (duration, size)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe
