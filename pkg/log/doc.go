// Package log provides the telemetry event log for wxnode agents.
//
// The event log is separate from operational logging (slog). It is a
// machine-readable trace of what the agent did on the uplink: every record
// published, every topic registered or subscribed, every inbound message,
// connection and loop state changes, and failures with their status.
//
// # Basic Usage
//
// Binaries choose a Logger implementation:
//
//	// Console, for development
//	events := log.NewSlogAdapter(slog.Default())
//
//	// Binary file, for later analysis with wxnode-log
//	events, _ := log.NewFileLogger("/var/log/wxnode/agent.tlog")
//
//	// Both
//	events := log.NewMultiLogger(console, file)
//
// Components log through a Session, which stamps each event with the session
// identifier, device and timestamp.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys, using the
// .tlog extension. Files are append-only; a new run appends a new session.
package log
