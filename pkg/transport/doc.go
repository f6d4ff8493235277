// Package transport defines the boundary between the telemetry agent and the
// uplink that carries its records.
//
// The agent never speaks a wireless protocol itself. It needs four things from
// an uplink: a way to join or connect, a way to send an opaque buffer to a
// named destination with a delivery-class hint, a status for each attempt, and
// optionally a callback for inbound messages. Adapter captures all of it;
// Publisher is the subset the publish loop uses.
//
// # Uplinks
//
//	┌────────────────────────────────┐
//	│   Reading records (text)       │
//	├───────────────┬────────────────┤
//	│  mqtt.Adapter │  lora.Modem    │
//	│  (paho)       │  (AT commands) │
//	├───────────────┼────────────────┤
//	│  TCP          │  serial port   │
//	└───────────────┴────────────────┘
//
// The mqtt adapter implements Adapter. The lora modem implements Publisher
// and delivers downlinks through OnDownlink.
//
// # Status
//
// A nil error means the uplink accepted the message. Failures wrap one of
// ErrNoGateway, ErrTimeout, ErrFailed or ErrClosed; match them with
// errors.Is. ErrClosed is terminal.
//
// # Topic identifiers
//
// Register maps a topic name to a short numeric identifier. Identifiers are
// assigned per session and start at 1; zero means unregistered.
package transport
