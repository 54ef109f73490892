// Package logging builds the slog loggers used by the bank assistant binaries.
//
// Text output on a terminal uses ColorHandler. When a log file is configured
// output goes through lumberjack so the interactive chat stays clean and the
// file is rotated at 10MB.
package logging
