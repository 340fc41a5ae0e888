// Package logging provides structured logging for the hubfix tool.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the tool. Logging is silent by default so the
// operator-facing terminal UI stays clean; it is enabled with the
// HUBFIX_LOG_LEVEL environment variable.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (remote commands, hex dumps)
//   - Info: Normal operations (stage transitions, transfers)
//   - Warn: Non-fatal issues
//   - Error: Run failures
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Stage complete",
//	    zap.String("device", "192.168.1.50"),
//	    zap.String("stage", "VerifiedPatched"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogStage(device, "Transferred", remotePath)
//	logging.LogTransfer(device, "push", remotePath, len(data))
//	logging.LogRemoteCommand(device, "/etc/init.d/cloudd stop", 0)
//	logging.LogRawBytes("payload header", header)
//
// # Configuration
//
// Initialize logging at command startup:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Logs go to stderr in console format so they never interleave with the
// progress UI on stdout.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
