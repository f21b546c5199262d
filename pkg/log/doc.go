// Package log provides structured protocol logging for the LWM2M client.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events: decoded requests and responses, bootstrap session
// state changes, and errors. It is separate from operational logging (slog):
// protocol capture provides a complete machine-readable trace of what the
// client was asked to do and how it answered.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/lwm2m/client.mlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Message: a decoded request or the response sent for it (MessageEvent)
//   - State: a bootstrap session or engine transition (StateChangeEvent)
//   - Error: a failure that was handled locally (ErrorEventData)
//
// # File Format
//
// Log files are a sequence of CBOR-encoded events with integer keys
// (.mlog extension). The lwm2m-log command views and summarizes them.
package log
