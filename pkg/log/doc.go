// Package log provides structured power event logging for railgate.
//
// This package defines the Logger interface and Event types for capturing
// the power lifecycle of a controller: state transitions, firmware calls,
// rollbacks and wake signals. It is separate from operational logging
// (slog) - the event trace is a complete machine-readable record for
// debugging power sequencing in the field, where knowing exactly which
// firmware call failed on which hardware generation matters.
//
// # Basic Usage
//
// Embedders configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/railgate/controller.rlog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/railgate/controller.rlog"),
//	)
//
// # Event Types
//
// Each event carries exactly one payload:
//   - State transitions of the power state machine (StateChangeEvent)
//   - Firmware power calls and their outcomes (FirmwareCallEvent)
//   - Wake signal deliveries (WakeEventData)
//   - Suspend rollbacks with their cause (RollbackEvent)
//   - Errors outside the above (ErrorEventData)
//
// Confirmation polling is condensed into a single firmware event carrying
// the attempt count, so a 300-attempt poll does not flood the trace.
//
// # File Format
//
// Log files use CBOR encoding with .rlog extension. The railgate-log CLI
// tool provides viewing, filtering, and summary statistics.
package log
