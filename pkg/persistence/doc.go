// Package persistence saves the agent's runtime state as JSON so a restarted
// agent can reconnect to its last gateway, restore its last will, resubscribe
// and resume publishing.
package persistence
