package sessionmanager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/pkg/session"
)

// InMemoryRegistry is the lock-protected map implementation of
// session.Registry: userID -> set of live connections. Entries exist only
// while their connection set is non-empty.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	users map[int64]map[uuid.UUID]*session.Connection

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		users:  make(map[int64]map[uuid.UUID]*session.Connection),
		logger: logger.With(slog.String("component", "session_registry")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Registry.
var _ session.Registry = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) Register(userID int64, t session.Transport, ipAddr string) *session.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := t.ID()
	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[uuid.UUID]*session.Connection)
		r.users[userID] = conns
	}
	if existing, ok := conns[connID]; ok {
		// Idempotent: re-registering the same pair changes nothing.
		return existing
	}

	conn := &session.Connection{
		ID:        connID,
		UserID:    userID,
		IPAddress: ipAddr,
		Transport: t,
		CreatedAt: time.Now(),
	}
	conns[connID] = conn
	r.logger.Debug("Connection registered", slog.String("connID", connID.String()), slog.Int64("userID", userID))
	return conn
}

func (r *InMemoryRegistry) Remove(userID int64, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return
	}
	if _, ok := conns[connID]; !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		// No empty sets linger in the map.
		delete(r.users, userID)
	}
	r.logger.Debug("Connection removed", slog.String("connID", connID.String()), slog.Int64("userID", userID))
}

func (r *InMemoryRegistry) Connections(userID int64) []*session.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	snapshot := make([]*session.Connection, 0, len(conns))
	for _, c := range conns {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

func (r *InMemoryRegistry) ConnectionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID])
}

func (r *InMemoryRegistry) OldestConnection(userID int64) (*session.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest *session.Connection
	for _, conn := range r.users[userID] {
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest, true
}

func (r *InMemoryRegistry) AllConnections() []*session.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var snapshot []*session.Connection
	for _, conns := range r.users {
		for _, c := range conns {
			snapshot = append(snapshot, c)
		}
	}
	return snapshot
}
