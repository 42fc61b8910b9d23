package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/notify"
	"github.com/taskwire/taskwire/internal/store"
	"github.com/taskwire/taskwire/pkg/session/sessionmanager"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// recordingTransport captures every pushed frame.
type recordingTransport struct {
	id uuid.UUID

	mu   sync.Mutex
	sent [][]byte
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{id: uuid.New()}
}

func (r *recordingTransport) ID() uuid.UUID { return r.id }
func (r *recordingTransport) Send(msg []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}
func (r *recordingTransport) Close(err error) {}

func (r *recordingTransport) messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.sent...)
}

// memoryNotifications is an in-memory store.NotificationStore stub.
type memoryNotifications struct {
	mu       sync.Mutex
	nextID   int64
	created  []store.Notification
	failErr  error
	failUser int64
}

func (m *memoryNotifications) CreateNotification(ctx context.Context, n *store.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil && (m.failUser == 0 || m.failUser == n.UserID) {
		return m.failErr
	}
	m.nextID++
	n.ID = m.nextID
	n.IsRead = false
	n.CreatedAt = time.Now().UTC()
	m.created = append(m.created, *n)
	return nil
}

func (m *memoryNotifications) NotificationsForUser(ctx context.Context, userID int64) ([]store.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Notification, 0)
	for _, n := range m.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryNotifications) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return 0, nil
}

func (m *memoryNotifications) rows() []store.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Notification(nil), m.created...)
}

func TestDispatchPersistsAndPushesToEveryConnection(t *testing.T) {
	registry := sessionmanager.NewInMemoryRegistry(newTestLogger())
	notifications := &memoryNotifications{}
	d := notify.NewDispatcher(notifications, registry, newTestLogger())

	c1 := newRecordingTransport()
	c2 := newRecordingTransport()
	registry.Register(7, c1, "1.1.1.1")
	registry.Register(7, c2, "1.1.1.1")

	n, err := d.Dispatch(context.Background(), 7, "Task 'Ship it' was updated", store.TypeTaskUpdate, "")
	require.NoError(t, err)

	// Exactly one durable row.
	rows := notifications.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, n.ID, rows[0].ID)
	assert.False(t, rows[0].IsRead)

	// Exactly one push per open connection, carrying the persisted record.
	for _, tr := range []*recordingTransport{c1, c2} {
		msgs := tr.messages()
		require.Len(t, msgs, 1)

		var envelope notify.ServerMessage
		require.NoError(t, json.Unmarshal(msgs[0], &envelope))
		assert.Equal(t, notify.EventNotificationNew, envelope.Event)

		var payload store.Notification
		require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
		assert.Equal(t, n.ID, payload.ID)
		assert.Equal(t, int64(7), payload.UserID)
		assert.Equal(t, "Task 'Ship it' was updated", payload.Message)
		assert.False(t, payload.IsRead)
	}
}

func TestDispatchWithoutConnectionsStillPersists(t *testing.T) {
	registry := sessionmanager.NewInMemoryRegistry(newTestLogger())
	notifications := &memoryNotifications{}
	d := notify.NewDispatcher(notifications, registry, newTestLogger())

	n, err := d.Dispatch(context.Background(), 42, "offline delivery", store.TypeSystem, "")
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.Len(t, notifications.rows(), 1)
}

func TestDispatchPushesOnlyToRemainingConnections(t *testing.T) {
	registry := sessionmanager.NewInMemoryRegistry(newTestLogger())
	notifications := &memoryNotifications{}
	d := notify.NewDispatcher(notifications, registry, newTestLogger())

	c1 := newRecordingTransport()
	c2 := newRecordingTransport()
	registry.Register(7, c1, "1.1.1.1")
	registry.Register(7, c2, "1.1.1.1")

	// c1 closes before the dispatch.
	registry.Remove(7, c1.ID())

	_, err := d.Dispatch(context.Background(), 7, "still delivered", store.TypeTaskUpdate, "")
	require.NoError(t, err)

	assert.Empty(t, c1.messages())
	assert.Len(t, c2.messages(), 1)
	assert.Len(t, notifications.rows(), 1)
}

func TestDispatchPersistenceFailureSuppressesPush(t *testing.T) {
	registry := sessionmanager.NewInMemoryRegistry(newTestLogger())
	notifications := &memoryNotifications{failErr: errors.New("disk full")}
	d := notify.NewDispatcher(notifications, registry, newTestLogger())

	c1 := newRecordingTransport()
	registry.Register(7, c1, "1.1.1.1")

	_, err := d.Dispatch(context.Background(), 7, "never seen", store.TypeSystem, "")
	require.Error(t, err)

	// No push may be observed for a notification that was never recorded.
	assert.Empty(t, c1.messages())
	assert.Empty(t, notifications.rows())
}

func TestFanoutDeliversToEachRecipientOnce(t *testing.T) {
	registry := sessionmanager.NewInMemoryRegistry(newTestLogger())
	notifications := &memoryNotifications{}
	d := notify.NewDispatcher(notifications, registry, newTestLogger())

	c7 := newRecordingTransport()
	c9 := newRecordingTransport()
	registry.Register(7, c7, "1.1.1.1")
	registry.Register(9, c9, "2.2.2.2")

	d.Fanout(context.Background(), []int64{7, 9}, "Task 'Doomed' was deleted", store.TypeTaskUpdate, "")

	// Each recipient got exactly one row and one push.
	rows := notifications.rows()
	require.Len(t, rows, 2)
	assert.Len(t, c7.messages(), 1)
	assert.Len(t, c9.messages(), 1)
}

func TestFanoutIsolatesRecipientFailures(t *testing.T) {
	registry := sessionmanager.NewInMemoryRegistry(newTestLogger())
	notifications := &memoryNotifications{failErr: errors.New("constraint violation"), failUser: 7}
	d := notify.NewDispatcher(notifications, registry, newTestLogger())

	c9 := newRecordingTransport()
	registry.Register(9, c9, "2.2.2.2")

	// User 7's dispatch fails; user 9 must still be delivered.
	d.Fanout(context.Background(), []int64{7, 9}, "partial failure", store.TypeSystem, "")

	rows := notifications.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(9), rows[0].UserID)
	assert.Len(t, c9.messages(), 1)
}
