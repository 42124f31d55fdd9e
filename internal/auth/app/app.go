package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lockboxhq/grantstore/internal/auth/directory"
	"github.com/lockboxhq/grantstore/internal/auth/service"
	"github.com/lockboxhq/grantstore/internal/auth/store"
	"github.com/lockboxhq/grantstore/internal/auth/store/drivers/sqlite"
	"github.com/lockboxhq/grantstore/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the grant-store maintenance daemon: it owns the durable
// authorization store, keeps its schema migrated, and runs the periodic
// purge of fully expired grants. The endpoint layer and issuance flows
// consume the same store through the interfaces in internal/auth/store.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	housekeepingService *service.HousekeepingService
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "grantstore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	db, err := sqlite.NewStore(cfg.DatabaseFile, directory.NewStatic(cfg.Clients...))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	app.db = db

	app.housekeepingService = service.NewHousekeepingService(app.db, app.logger, cfg.HousekeepingInterval)

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("grantstore starting", "database", app.cfg.DatabaseFile, "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops the housekeeping worker and releases the store.
func (app *Application) Shutdown() error {
	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	app.logger.Info("shutdown complete")
	return nil
}
