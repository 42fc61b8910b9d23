// Package notify delivers domain events to users: durably, via the
// notification store, and live, via the session registry's open connections.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taskwire/taskwire/internal/store"
	"github.com/taskwire/taskwire/pkg/session"
)

// EventNotificationNew is the event name pushed for every dispatched
// notification. The payload is the persisted Notification record.
const EventNotificationNew = "notification:new"

// ConnectionSource is the read-only view of the session registry the
// dispatcher needs.
type ConnectionSource interface {
	Connections(userID int64) []*session.Connection
}

// ServerMessage is the envelope for every server-to-client push.
type ServerMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher implements persist-then-push delivery. The durable write is the
// source of truth; live pushes are best-effort extras on top of it.
type Dispatcher struct {
	store    store.NotificationStore
	registry ConnectionSource
	logger   *slog.Logger
}

func NewDispatcher(notifications store.NotificationStore, registry ConnectionSource, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    notifications,
		registry: registry,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch persists a notification for the user and pushes it to each of the
// user's open connections. If persistence fails the whole call fails and no
// push is attempted; a notification that was never durably recorded must not
// become visible. Push failures after a successful write are silently
// absorbed, the record remains readable on next fetch.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, message, typ, eventContext string) (*store.Notification, error) {
	n := &store.Notification{
		UserID:  userID,
		Message: message,
		Type:    typ,
		Context: eventContext,
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("dispatch to user %d: %w", userID, err)
	}

	// The registry is touched only after the blocking write completed, and
	// only for a snapshot read.
	conns := d.registry.Connections(userID)
	if len(conns) == 0 {
		return n, nil
	}

	msg, err := Encode(EventNotificationNew, n)
	if err != nil {
		// The durable record exists; the user sees it on next fetch.
		d.logger.Error("Failed to encode push event", slog.Int64("userID", userID), slog.Any("error", err))
		return n, nil
	}
	for _, conn := range conns {
		// A connection that closed between snapshot and push drops the
		// message; at-most-once live delivery per connection.
		conn.Transport.Send(msg)
	}
	d.logger.Debug("Notification dispatched",
		slog.Int64("userID", userID),
		slog.Int64("notificationID", n.ID),
		slog.Int("liveConnections", len(conns)),
	)
	return n, nil
}

// Fanout dispatches the same event to each recipient independently and
// concurrently. One recipient's failure never blocks or aborts the others;
// failures are logged and swallowed, since a notification miss must not roll
// back the task mutation that triggered it.
func (d *Dispatcher) Fanout(ctx context.Context, recipients []int64, message, typ, eventContext string) {
	var wg sync.WaitGroup
	for _, userID := range recipients {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if _, err := d.Dispatch(ctx, userID, message, typ, eventContext); err != nil {
				d.logger.Error("Fan-out delivery failed for recipient",
					slog.Int64("userID", userID),
					slog.Any("error", err),
				)
			}
		}(userID)
	}
	wg.Wait()
}

// Encode wraps a payload in the server-to-client event envelope.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ServerMessage{Event: event, Payload: raw})
}
