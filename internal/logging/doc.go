// Package logging provides a simple leveled logging interface for the
// media index application.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// Messages are written through zerolog. The log level is configured via the
// LOG_LEVEL environment variable (or DEBUG=true), and the output format via
// LOG_FORMAT ("json" or "console"). When LOG_FORMAT is unset, console output is
// used when stderr is a terminal and JSON otherwise.
package logging
