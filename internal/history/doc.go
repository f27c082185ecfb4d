// Package history records stage runs in SQLite so operators can see what
// each frames, keypoints and verify invocation did.
//
// The Store owns the database connection and schema. A run is opened with
// Begin, accumulates per-item outcomes through RecordItem, and is closed with
// Finish. Recorder wraps a Store for the stage commands: history is
// best-effort, so Recorder logs failures instead of returning them.
//
// Schema changes bump the version in schema.go; users delete history.db to
// adopt the new schema.
package history
