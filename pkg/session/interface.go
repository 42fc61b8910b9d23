package session

import "github.com/google/uuid"

// Registry tracks which connections each user currently has open. It is the
// only shared mutable state of the realtime layer; implementations must be
// safe under concurrent register/remove/lookup from independent connection
// lifecycles and must never perform I/O.
type Registry interface {
	// Register adds the transport to the user's connection set, creating the
	// set if absent. Registering an already-present pair is a no-op and
	// returns the existing record.
	Register(userID int64, t Transport, ipAddr string) *Connection

	// Remove deletes the (user, connection) pair. Removing the last
	// connection for a user removes the user's entry entirely. Removing a
	// pair that is not present is a no-op; disconnect handlers may fire more
	// than once.
	Remove(userID int64, connID uuid.UUID)

	// Connections returns a snapshot of the user's current connections,
	// possibly empty, never nil. Mutating the returned slice does not affect
	// the registry.
	Connections(userID int64) []*Connection

	// ConnectionCount reports how many connections the user has open.
	ConnectionCount(userID int64) int

	// OldestConnection returns the user's longest-lived connection, used by
	// the connection limiter's cycle mode.
	OldestConnection(userID int64) (*Connection, bool)

	// AllConnections returns a snapshot of every registered connection,
	// used during graceful shutdown.
	AllConnections() []*Connection
}
