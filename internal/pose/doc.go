// Package pose wraps pose-estimation backends behind the Detector interface.
//
// A Detector maps one decoded image to a LandmarkSet of 33 body landmarks, or
// to nil when no pose is found. It never pads: substituting zeros for missing
// poses is the caller's job.
//
// Two backends are available:
//   - ProcessDetector runs a long-lived worker command and exchanges
//     newline-delimited JSON over its stdin/stdout.
//   - GRPCDetector calls a remote PoseEstimator service with
//     google.protobuf.Struct messages.
//
// Both carry frames as packed RGB24 pixels, the channel order pose models
// expect, so callers hand over any image.Image and conversion happens here.
package pose
