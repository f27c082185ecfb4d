// Package main hosts the signprep CLI entrypoint and command graph.
//
// The Cobra command tree exposes the three dataset stages (frames,
// keypoints, verify) plus support commands for configuration, dependency
// status, output inspection and run history. Configuration and logging are
// resolved once per invocation in commandContext; each stage command takes
// the stage lock and records its run before handing off to the internal
// package that does the work.
package main
