// Package router handles messages arriving over live connections. The inbound
// surface is small: clients can acknowledge their notifications and keep the
// connection warm; everything else in the system flows server-to-client.
package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/taskwire/taskwire/internal/notify"
	"github.com/taskwire/taskwire/internal/store"
	"github.com/taskwire/taskwire/pkg/session"
	"github.com/taskwire/taskwire/pkg/transport"
)

// Client identifies the authenticated connection a message arrived on.
type Client struct {
	UserID    int64
	Transport session.Transport
}

// HandlerFunc processes one inbound event. payload is the raw "payload" field
// of the client message, possibly absent.
type HandlerFunc func(ctx context.Context, client Client, payload gjson.Result) error

type Router struct {
	logger        *slog.Logger
	notifications store.NotificationStore

	handlers  map[string]HandlerFunc
	handlerMu sync.RWMutex
}

func New(logger *slog.Logger, notifications store.NotificationStore) *Router {
	r := &Router{
		logger:        logger.With(slog.String("component", "event_router")),
		notifications: notifications,
		handlers:      make(map[string]HandlerFunc),
	}
	r.Register("notifications:read", r.handleMarkAllRead)
	r.Register("ping", r.handlePing)
	return r
}

// Register binds an event name to its handler. Double registration is a
// programmer error.
func (r *Router) Register(event string, fn HandlerFunc) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	if _, exists := r.handlers[event]; exists {
		panic("event handler already registered: " + event)
	}
	r.handlers[event] = fn
}

// Handler returns the transport message callback for one authenticated
// connection, with the user identity bound in.
func (r *Router) Handler(userID int64, t session.Transport) transport.MessageHandler {
	client := Client{UserID: userID, Transport: t}
	return func(ctx context.Context, connID uuid.UUID, msg []byte) {
		event := gjson.GetBytes(msg, "event").String()
		if event == "" {
			r.logger.Warn("Inbound message without event name", slog.Int64("userID", userID))
			return
		}

		r.handlerMu.RLock()
		fn, ok := r.handlers[event]
		r.handlerMu.RUnlock()
		if !ok {
			r.logger.Warn("Received unknown event", slog.String("event", event), slog.Int64("userID", userID))
			return
		}

		if err := fn(ctx, client, gjson.GetBytes(msg, "payload")); err != nil {
			r.logger.Error("Event handler failed",
				slog.String("event", event),
				slog.Int64("userID", userID),
				slog.Any("error", err),
			)
		}
	}
}

// handleMarkAllRead flips every unread notification of the connected user to
// read and reports the count back on the same connection. The flip is global
// per user: acknowledging on one device acknowledges on all.
func (r *Router) handleMarkAllRead(ctx context.Context, client Client, _ gjson.Result) error {
	updated, err := r.notifications.MarkAllRead(ctx, client.UserID)
	if err != nil {
		return err
	}
	reply, err := notify.Encode("notifications:read", map[string]int64{"updated": updated})
	if err != nil {
		return err
	}
	client.Transport.Send(reply)
	return nil
}

func (r *Router) handlePing(_ context.Context, client Client, payload gjson.Result) error {
	pong := map[string]string{}
	if nonce := payload.Get("nonce").String(); nonce != "" {
		pong["nonce"] = nonce
	}
	reply, err := notify.Encode("pong", pong)
	if err != nil {
		return err
	}
	client.Transport.Send(reply)
	return nil
}
