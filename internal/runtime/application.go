// Package runtime wires the LockCase backend together and manages the HTTP
// server lifecycle.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/lockcase/backend/internal/config"
	"github.com/lockcase/backend/internal/domain/record"
	"github.com/lockcase/backend/internal/httpapi"
	"github.com/lockcase/backend/internal/metrics"
	"github.com/lockcase/backend/internal/middleware"
	"github.com/lockcase/backend/internal/services/records"
	"github.com/lockcase/backend/internal/services/signup"
	"github.com/lockcase/backend/internal/storage"
	"github.com/lockcase/backend/internal/storage/memory"
	"github.com/lockcase/backend/internal/storage/postgres"
	"github.com/lockcase/backend/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server
	db         *sql.DB
}

// NewApplication constructs a new application instance with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	lockStore, groupStore, directory, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	lockSvc := records.New(record.KindLock, lockStore, log.WithField("service", "locks"))
	groupSvc := records.New(record.KindGroup, groupStore, log.WithField("service", "groups"))
	gate := signup.New(directory, log.WithField("service", "signup"))

	requestTimeout := time.Duration(cfg.Server.RequestTimeout) * time.Second
	handler := httpapi.NewHandler(lockSvc, groupSvc, gate, httpapi.Config{
		HookSecret:     cfg.Auth.SignupHookSecret,
		PoolID:         cfg.UserPoolID,
		RequestTimeout: requestTimeout,
	}, log.WithField("component", "httpapi"))

	chain := buildMiddleware(cfg, log, handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		httpServer: httpSrv,
		db:         db,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the HTTP server and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}

	return nil
}

// buildMiddleware assembles the handler chain, outermost first: request
// logging, CORS, metrics, authentication, then per-caller rate limiting so
// the limiter keys on the verified identity.
func buildMiddleware(cfg *config.Config, log *logger.Logger, handler http.Handler) http.Handler {
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.WithField("component", "ratelimit"))
	limiter.StartCleanup(10 * time.Minute)

	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), log.WithField("component", "auth"), []string{
		"/healthz",
		"/metrics",
		"/hooks/pre-signup",
	})
	cors := middleware.NewCORSMiddleware(cfg.CORSOrigins)
	requestLog := middleware.NewRequestLogger(log.WithField("component", "http"))

	chain := limiter.Handler(handler)
	chain = auth.Handler(chain)
	chain = metrics.InstrumentHandler(chain)
	chain = cors.Handler(chain)
	chain = requestLog.Handler(chain)
	return chain
}

func buildStores(cfg *config.Config, log *logger.Logger) (storage.RecordStore, storage.RecordStore, storage.IdentityDirectory, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("no database configured, using in-memory stores")
		return memory.NewRecordStore(record.KindLock), memory.NewRecordStore(record.KindGroup), memory.NewDirectory(), nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if err := applyMigrations(db, cfg.Database.MigrationsPath, log); err != nil {
		db.Close()
		return nil, nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	lockStore := postgres.NewRecordStore(db, cfg.LockTableName)
	groupStore := postgres.NewRecordStore(db, cfg.GroupTableName)

	return lockStore, groupStore, postgres.NewDirectory(db), db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func applyMigrations(db *sql.DB, path string, log *logger.Logger) error {
	if path == "" {
		log.Warn("no migrations path configured, skipping migrations")
		return nil
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Info("database migrations applied")
	return nil
}
