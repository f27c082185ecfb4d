// Package logs reads the signprep log file for the `signprep logs` command.
//
// Last returns the trailing lines of the file with bounded memory, and
// Follow polls for lines appended after a byte offset until its context is
// cancelled. A truncated or rotated file restarts from the beginning.
package logs
