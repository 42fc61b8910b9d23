package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskwire/taskwire/internal/notify"
	"github.com/taskwire/taskwire/internal/router"
	"github.com/taskwire/taskwire/internal/server"
	"github.com/taskwire/taskwire/internal/store/sqlitestore"
	"github.com/taskwire/taskwire/internal/workflow"
	"github.com/taskwire/taskwire/pkg/auth"
	"github.com/taskwire/taskwire/pkg/config"
	"github.com/taskwire/taskwire/pkg/logging"
	"github.com/taskwire/taskwire/pkg/session/sessionmanager"
)

func main() {
	bootLogger := logging.New("info")

	cfg, err := config.Load(bootLogger, "config")
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlitestore.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("Failed to open entity store", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	registry := sessionmanager.NewInMemoryRegistry(logger)
	dispatcher := notify.NewDispatcher(db, registry, logger)
	tasks := workflow.NewTaskService(db, db, dispatcher, logger)
	eventRouter := router.New(logger, db)
	verifier := auth.NewJWTVerifier(cfg.Server.Auth.JWTSecret)

	app := server.NewApp(logger, ctx, cfg, server.Deps{
		Registry:      registry,
		Verifier:      verifier,
		Tasks:         tasks,
		Notifications: db,
		Router:        eventRouter,
	})
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
