// Package subscription implements the agent's table of active topic
// subscriptions.
//
// The table has a fixed number of slots. A subscription occupies the first
// free slot and keeps it until it is removed; lookups scan the slots in order
// and match topic names exactly. Wildcards are the broker's business.
//
// # Concurrency
//
// Inbound messages arrive on the transport's goroutine while the command path
// adds and removes entries. Dispatch takes the read lock only long enough to
// find the handler and calls it after releasing the lock, so a handler may
// itself query the table.
//
// # Lifecycle
//
// Entries do not survive a lost connection on their own; the owner clears the
// table when the session ends.
package subscription
