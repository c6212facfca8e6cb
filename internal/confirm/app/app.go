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

	"github.com/aussiebroadwan/confirm/internal/confirm/chat"
	"github.com/aussiebroadwan/confirm/internal/confirm/directory"
	httpapi "github.com/aussiebroadwan/confirm/internal/confirm/http"
	"github.com/aussiebroadwan/confirm/internal/confirm/metrics"
	"github.com/aussiebroadwan/confirm/internal/confirm/notify"
	"github.com/aussiebroadwan/confirm/internal/confirm/service"
	"github.com/aussiebroadwan/confirm/internal/confirm/store"
	"github.com/aussiebroadwan/confirm/internal/confirm/store/drivers/memory"
	"github.com/aussiebroadwan/confirm/internal/confirm/store/drivers/sqlite"
	"github.com/aussiebroadwan/confirm/pkg/jwtx"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns every long-lived piece of the gateway.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db        store.Store
	directory *directory.Memory
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	verifier  *jwtx.HS256

	registry            *service.Registry
	enrollmentService   *service.EnrollmentService
	dispatcher          *service.Dispatcher
	housekeepingService *service.HousekeepingService
	robot               *chat.Robot

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "confirm",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		directory: directory.NewMemory(),
		metrics:   metrics.New(),
	}

	verifier, err := jwtx.NewHS256([]byte(cfg.Confirm.JWTSecret), cfg.Confirm.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	app.verifier = verifier

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initNotifier()
	app.initServices()

	if err := app.initCatalog(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Handler exposes the HTTP router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("confirm service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully shuts down the application. Pending confirmations are
// dropped; they live only as long as the process.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down confirm service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.registry.Reset()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("confirm service stopped")
	return nil
}

// initDatabase opens the enrollment store selected by CONFIRM_STORAGE_MODE.
func (app *Application) initDatabase() error {
	if app.cfg.Confirm.StorageMode != StorageSQLite {
		app.db = memory.NewStore()
		app.logger.Info("using in-memory enrollment store")
		return nil
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.Confirm.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.Confirm.DatabaseFile)
	return nil
}

func (app *Application) initNotifier() {
	if app.cfg.SMTP.Host == "" {
		app.notifier = notify.NewWriter(os.Stderr)
		app.logger.Warn("SMTP_HOST not set, enrollment secrets will be written to stderr")
		return
	}
	app.notifier = notify.NewSMTP(notify.SMTPConfig{
		Host:     app.cfg.SMTP.Host,
		Port:     app.cfg.SMTP.Port,
		Username: app.cfg.SMTP.Username,
		Password: app.cfg.SMTP.Password,
		From:     app.cfg.SMTP.From,
	})
}

func (app *Application) initServices() {
	app.registry = service.NewRegistry(app.directory, app.logger, app.metrics)

	app.enrollmentService = &service.EnrollmentService{
		Store:            app.db.Enrollments(),
		Notifier:         app.notifier,
		Directory:        app.directory,
		Logger:           app.logger,
		Metrics:          app.metrics,
		Issuer:           app.cfg.Confirm.TOTPIssuer,
		Secure:           app.cfg.Confirm.TwoFactorSecure,
		PrivilegedGroups: app.cfg.Confirm.PrivilegedGroups,
		NotifyTimeout:    app.cfg.Confirm.NotifyTimeout,
	}

	app.dispatcher = &service.Dispatcher{
		Registry:           app.registry,
		Enrollments:        app.enrollmentService,
		Logger:             app.logger,
		Metrics:            app.metrics,
		DefaultTwoFactor:   app.cfg.TwoFactorDefault(),
		DefaultExpireAfter: app.cfg.Confirm.ExpireAfter,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.registry,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.robot = chat.NewRobot(app.dispatcher, app.enrollmentService, app.logger)
}

func (app *Application) initCatalog() error {
	if app.cfg.Confirm.CatalogFile == "" {
		app.logger.Warn("CONFIRM_CATALOG_FILE not set, only built-in commands are available")
		return nil
	}

	catalog, err := LoadCatalog(app.cfg.Confirm.CatalogFile)
	if err != nil {
		return err
	}
	catalog.Seed(app.directory)
	if err := catalog.Register(app.robot); err != nil {
		return err
	}

	app.logger.Info("catalog loaded",
		"users", len(catalog.Users),
		"commands", len(catalog.Commands),
	)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.db,
		app.robot,
		app.registry,
		app.metrics,
		app.logger,
	)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
