package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/stubbl/identity/internal/identity/http"
	"github.com/stubbl/identity/internal/identity/metrics"
	"github.com/stubbl/identity/internal/identity/service"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/internal/identity/store/cache"
	"github.com/stubbl/identity/internal/identity/store/drivers/mongo"
	"github.com/stubbl/identity/pkg/cryptox"
	"github.com/stubbl/identity/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

const connectTimeout = 10 * time.Second

// Application wires the identity store, services and HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db *mongo.Store

	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "identity",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// OpenStore connects to MongoDB and ensures the indexes exist.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (*mongo.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := mongo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	logger.Info("database ready")
	return db, nil
}

// NewAccountService loads the pepper and builds the account service on users.
func NewAccountService(cfg Config, users store.Users) (*service.AccountService, error) {
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	return &service.AccountService{
		Users:                   users,
		Hasher:                  cryptox.NewPasswordHasher(pepper),
		Issuer:                  cfg.AuthenticatorIssuer,
		MaxFailedAccessAttempts: cfg.LockoutMaxAttempts,
		LockoutDuration:         cfg.LockoutDuration,
	}, nil
}

// New creates the application with all dependencies initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	if err := metrics.Register(nil); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	db, err := OpenStore(ctx, cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.db.Close(context.Background())
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(ctx); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

func (app *Application) initServices() {
	app.housekeepingService = service.NewHousekeepingService(
		app.db.PersistedGrants(),
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.cfg.AdminAPIKey, BuildVersion, app.logger)
	if app.cfg.ClientCacheTTL > 0 {
		router.Clients = cache.NewClientStore(app.db.Clients(), app.cfg.ClientCacheTTL)
	}
	router.AdminLimit = app.cfg.AdminRateLimit
	router.ProbeLimit = app.cfg.ProbeRateLimit
	router.ApplyRoutes()

	if app.cfg.AdminAPIKey == "" {
		app.logger.Warn("IDENTITY_ADMIN_API_KEY is not set, admin routes are disabled")
	}

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
