// Package logging provides the slog handlers used by the node runner.
//
// Console output is one line per record, `[LEVEL] Account N: message key=value`,
// with the level colored through lipgloss when the writer is a terminal. When a
// log directory is configured, each identity also gets a rotated JSON log file.
package logging
