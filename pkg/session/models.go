package session

import (
	"time"

	"github.com/google/uuid"
)

// Transport is the subset of the websocket transport the session layer needs.
// Implemented by *transport.Connection; tests substitute fakes.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Connection is the registry's record of a single live connection bound to an
// authenticated user. One user may own several of these at once (multi-device).
type Connection struct {
	ID        uuid.UUID
	UserID    int64
	IPAddress string
	Transport Transport
	CreatedAt time.Time
}
