// Package keypoints implements the keypoint extraction stage and the checks
// run against its output.
//
// Each <frames>/<category>/<video> directory with at least one JPEG becomes
// <keypoints>/<category>/<video>/keypoints.npy and keypoints.json. The NPY
// array is float32 with shape (frames, 33, 4); the JSON document lists one
// record per frame. Both are index-aligned and fully rewritten on every run.
//
// Frames that fail to decode or show no pose are stored as 33x4 zeros with
// detected=false. That is expected data, not an error, and is only logged at
// debug level. A failing pose backend, by contrast, aborts the run.
package keypoints
