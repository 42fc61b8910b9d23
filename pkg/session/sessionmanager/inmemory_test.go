package sessionmanager_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/pkg/session/sessionmanager"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry() *sessionmanager.InMemoryRegistry {
	return sessionmanager.NewInMemoryRegistry(newTestLogger())
}

// fakeTransport satisfies session.Transport without a real websocket.
type fakeTransport struct {
	id uuid.UUID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: uuid.New()}
}

func (f *fakeTransport) ID() uuid.UUID   { return f.id }
func (f *fakeTransport) Send(msg []byte) {}
func (f *fakeTransport) Close(err error) {}

// --- Lifecycle Tests ---

func TestRegisterAndRemoveLifecycle(t *testing.T) {
	r := newTestRegistry()
	userID := int64(7)
	t1 := newFakeTransport()
	t2 := newFakeTransport()

	conn := r.Register(userID, t1, "127.0.0.1")
	if conn.ID != t1.ID() {
		t.Errorf("Registered connection ID mismatch")
	}
	if conn.UserID != userID {
		t.Errorf("Expected connection bound to user %d, got %d", userID, conn.UserID)
	}

	r.Register(userID, t2, "127.0.0.1")
	if count := r.ConnectionCount(userID); count != 2 {
		t.Fatalf("Expected connection count 2, got %d", count)
	}

	r.Remove(userID, t1.ID())
	if count := r.ConnectionCount(userID); count != 1 {
		t.Fatalf("Expected connection count 1 after remove, got %d", count)
	}

	conns := r.Connections(userID)
	if len(conns) != 1 || conns[0].ID != t2.ID() {
		t.Errorf("Expected only the second connection to remain")
	}

	r.Remove(userID, t2.ID())
	if count := r.ConnectionCount(userID); count != 0 {
		t.Errorf("Expected connection count 0 after removing all, got %d", count)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	userID := int64(1)
	tr := newFakeTransport()

	first := r.Register(userID, tr, "1.1.1.1")
	second := r.Register(userID, tr, "1.1.1.1")

	if first != second {
		t.Error("Re-registering the same pair should return the existing record")
	}
	if count := r.ConnectionCount(userID); count != 1 {
		t.Errorf("Expected connection count 1 after duplicate register, got %d", count)
	}
}

func TestRemoveUnknownPairIsNoOp(t *testing.T) {
	r := newTestRegistry()
	userID := int64(1)
	tr := newFakeTransport()

	// Remove for a user that was never registered.
	r.Remove(userID, tr.ID())

	// Remove twice; disconnect handlers may fire more than once.
	r.Register(userID, tr, "1.1.1.1")
	r.Remove(userID, tr.ID())
	r.Remove(userID, tr.ID())

	if count := r.ConnectionCount(userID); count != 0 {
		t.Errorf("Expected connection count 0, got %d", count)
	}
}

func TestConnectionsReturnsEmptySnapshotNotNil(t *testing.T) {
	r := newTestRegistry()

	conns := r.Connections(42)
	if conns == nil {
		t.Fatal("Connections must return an empty slice for unknown users, not nil")
	}
	if len(conns) != 0 {
		t.Fatalf("Expected empty snapshot, got %d entries", len(conns))
	}
}

func TestConnectionsSnapshotIsIsolated(t *testing.T) {
	r := newTestRegistry()
	userID := int64(3)
	tr := newFakeTransport()
	r.Register(userID, tr, "1.1.1.1")

	snapshot := r.Connections(userID)
	snapshot[0] = nil

	conns := r.Connections(userID)
	if len(conns) != 1 || conns[0] == nil {
		t.Error("Mutating a snapshot must not affect the registry")
	}
}

func TestOldestConnection(t *testing.T) {
	r := newTestRegistry()
	userID := int64(5)
	t1 := newFakeTransport()
	r.Register(userID, t1, "1.1.1.1")
	time.Sleep(5 * time.Millisecond) // Ensure timestamps are different
	t2 := newFakeTransport()
	r.Register(userID, t2, "2.2.2.2")

	oldest, found := r.OldestConnection(userID)
	if !found {
		t.Fatal("Expected to find oldest connection, but did not")
	}
	if oldest.ID != t1.ID() {
		t.Errorf("Expected oldest connection ID to be %s, got %s", t1.ID(), oldest.ID)
	}

	_, found = r.OldestConnection(99)
	if found {
		t.Error("Expected no oldest connection for unknown user")
	}
}

func TestAllConnections(t *testing.T) {
	r := newTestRegistry()
	r.Register(1, newFakeTransport(), "1.1.1.1")
	r.Register(1, newFakeTransport(), "1.1.1.1")
	r.Register(2, newFakeTransport(), "2.2.2.2")

	all := r.AllConnections()
	if len(all) != 3 {
		t.Fatalf("Expected 3 connections across all users, got %d", len(all))
	}
}

// --- Concurrency Tests ---

func TestConcurrentLifecycles(t *testing.T) {
	r := newTestRegistry()
	numGoroutines := 100
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := int64(i % 10)
			tr := newFakeTransport()

			r.Register(userID, tr, "1.1.1.1")
			r.Connections(userID)
			r.ConnectionCount(userID)
			r.Remove(userID, tr.ID())
		}(i)
	}

	wg.Wait()

	// Every goroutine removed what it registered; nothing may leak.
	for u := int64(0); u < 10; u++ {
		if count := r.ConnectionCount(u); count != 0 {
			t.Errorf("User %d leaked %d registry entries", u, count)
		}
	}
	if all := r.AllConnections(); len(all) != 0 {
		t.Errorf("Expected empty registry after all lifecycles completed, got %d entries", len(all))
	}
}
