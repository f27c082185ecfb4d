// Package logging builds the slog loggers used by signprep commands.
//
// Console output is one line per record with the component and item lifted
// into a prefix, a shortened run id, and an optional [event] tag taken from
// event_type. JSON output uses ts, level and msg keys. Either format can be
// mirrored into signprep.log under logging.dir, which `signprep logs` reads.
//
// WithContext copies the run id, stage and item stamped on a context by the
// services package onto a logger.
package logging
