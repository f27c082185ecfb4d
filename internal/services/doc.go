// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and the item
//     being processed for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (external tool, configuration, validation) with errors.Is.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
