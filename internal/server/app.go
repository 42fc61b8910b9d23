package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/taskwire/taskwire/internal/router"
	"github.com/taskwire/taskwire/internal/server/middleware"
	"github.com/taskwire/taskwire/internal/store"
	"github.com/taskwire/taskwire/internal/workflow"
	"github.com/taskwire/taskwire/pkg/auth"
	"github.com/taskwire/taskwire/pkg/config"
	"github.com/taskwire/taskwire/pkg/session"
	"github.com/taskwire/taskwire/pkg/transport"
)

// Deps are the collaborators the server is wired with at startup. The session
// registry is an explicit instance with its own lifecycle; nothing here is a
// package-level global.
type Deps struct {
	Registry      session.Registry
	Verifier      auth.TokenVerifier
	Tasks         *workflow.TaskService
	Notifications store.NotificationStore
	Router        *router.Router
}

type App struct {
	logger        *slog.Logger
	registry      session.Registry
	tasks         *workflow.TaskService
	notifications store.NotificationStore
	eventRouter   *router.Router
	wg            sync.WaitGroup
	http          *http.Server
	config        *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, deps Deps) *App {
	app := &App{
		logger:        logger,
		registry:      deps.Registry,
		tasks:         deps.Tasks,
		notifications: deps.Notifications,
		eventRouter:   deps.Router,
		config:        cfg,
		ctx:           rootCtx,
	}

	authn := middleware.NewAuthMiddleware(logger, deps.Verifier)
	connCounter := middleware.UserConnectionCounter(deps.Registry.ConnectionCount)
	// Cycler closes the user's oldest connection to make room for the new one.
	connCycler := func(userID int64) {
		oldest, found := deps.Registry.OldestConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", slog.Int64("userID", userID), slog.String("connID", oldest.ID.String()))
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			authn,
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(
				logger,
				connCounter,
				connCycler,
				app.config.Server.ConnectionLimit,
			),
		),
	)
	app.registerAPIRoutes(mux, authn)

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// upgradeHandler accepts an authenticated websocket connection, registers it
// with the session registry for its lifetime, and removes it exactly once on
// close, whatever the close reason.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	userID := reqMeta.UserID
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.Int64("userID", userID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	// The close handler is bound at construction, before the connection is
	// visible to anyone else. A cycled close arriving the instant the
	// connection enters the registry must still remove it.
	onClose := func(id uuid.UUID, err error) {
		connLogger.Info("Removing connection from registry due to closure", slog.String("connID", id.String()))
		a.registry.Remove(userID, id)
	}
	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{ReadTimeout: a.config.Transport.ReadTimeout},
		nil,
		onClose,
		a.logger,
	)
	// The message handler needs the connection to reply on; it is set before
	// the pumps start and before the connection is shared.
	conn.SetOnMessageHandler(a.eventRouter.Handler(userID, conn))
	a.registry.Register(userID, conn, reqMeta.IP)

	connLogger.Info("User connection fully established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.AllConnections() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
