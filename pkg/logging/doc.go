// Package logging provides structured logging utilities for the node agent.
//
// # Overview
//
// This package wraps the standard library slog package with agent defaults.
// Standard output carries the IPC protocol, so every log line goes to stderr
// as JSON. It supports environment-based log level configuration,
// module/version context injection, and source location tracking for debug logs.
//
// # Log Levels
//
// Supported log levels (case-insensitive):
//   - DEBUG: Detailed diagnostic information with source location
//   - INFO: General informational messages (default)
//   - WARN/WARNING: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures requiring attention
//
// # Usage
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("cns-agent", version)
//	    slog.Info("agent starting", "target", "local")
//	}
//
// Setting explicit log level:
//
//	logging.SetDefaultStructuredLoggerWithLevel("cns-agent", version, "debug")
//
// Converting standard library logger (used for the metrics HTTP server):
//
//	stdLogger := logging.NewLogLogger(slog.LevelError, false)
//
// # Environment Configuration
//
//	LOG_LEVEL=debug cns-agent run
//
// If LOG_LEVEL is not set, defaults to INFO level.
//
// # Output Format
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "INFO",
//	    "msg": "published domain",
//	    "module": "cns-agent",
//	    "version": "v1.0.0",
//	    "domain": "containers"
//	}
package logging
