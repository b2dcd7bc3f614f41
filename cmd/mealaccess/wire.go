package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/meal-access/internal/adapter"
	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/config"
	"github.com/example/meal-access/internal/facematch"
	httptransport "github.com/example/meal-access/internal/http"
	"github.com/example/meal-access/internal/lock"
	"github.com/example/meal-access/internal/observability"
	"github.com/example/meal-access/internal/persistence"
	"github.com/example/meal-access/internal/persistence/memory"
	"github.com/example/meal-access/internal/persistence/sqlite"
)

// storage is the opened store plus the probes only SQLite provides.
type storage struct {
	persistence.Store
	Health        func(ctx context.Context) error
	SchemaVersion func(ctx context.Context) (string, error)
}

func openStore(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) (storage, error) {
	if opts.memory {
		logger.Warn("using in-memory storage; data is lost on exit")
		return storage{Store: memory.New()}, nil
	}

	store, err := sqlite.Open(ctx, sqlite.Config{DSN: cfg.SQLiteDSN, BusyTimeout: cfg.SQLiteBusyTimeout}, logger)
	if err != nil {
		return storage{}, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return storage{}, fmt.Errorf("apply migrations: %w", err)
	}
	return storage{Store: store, Health: store.Ping, SchemaVersion: store.SchemaVersion}, nil
}

// lockBackend pairs a Locker with whatever connection it owns.
type lockBackend struct {
	Locker lock.Locker
	closer io.Closer
}

func (b lockBackend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (lockBackend, error) {
	if cfg.LockBackend != config.LockBackendRedis {
		return lockBackend{Locker: lock.NewKeyed()}, nil
	}
	client, err := lock.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		return lockBackend{}, err
	}
	return lockBackend{
		Locker: lock.NewRedis(client, lock.RedisOptions{TTL: cfg.LockTTL, Logger: logger}),
		closer: client,
	}, nil
}

func newFaceExtractor(cfg config.Config, logger *slog.Logger) facematch.Extractor {
	return facematch.NewHTTPExtractor(cfg.FaceExtractorURL, cfg.FaceExtractorTimeout, logger)
}

type app struct {
	engine    *application.AuthorizationEngine
	employees *application.EmployeeService
	venues    *application.VenueService
	admins    *application.AdminService
	auth      *application.AuthService
	reports   *application.ReportService
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func newApp(cfg config.Config, store persistence.Store, locker lock.Locker, extractor facematch.Extractor, logger *slog.Logger) *app {
	now := time.Now
	loc := cfg.Location()

	employeeRepo := adapter.NewEmployeeRepository(store)
	venueRepo := adapter.NewVenueRepository(store)
	adminRepo := adapter.NewAdminRepository(store)

	resolver := application.NewIdentityResolver(adapter.NewIdentityStore(store), extractor, cfg.MatchThreshold, logger)

	return &app{
		engine: application.NewAuthorizationEngine(application.AuthorizationEngineDeps{
			Resolver:    resolver,
			Venues:      adapter.NewVenueCatalog(store),
			Ledger:      adapter.NewMealLedger(store),
			Locker:      locker,
			IDGenerator: uuid.NewString,
			Now:         now,
			Location:    loc,
			Logger:      logger,
		}),
		employees: application.NewEmployeeServiceWithLogger(employeeRepo, venueRepo, extractor, now, logger),
		venues:    application.NewVenueServiceWithLogger(venueRepo, now, logger),
		admins:    application.NewAdminServiceWithLogger(adminRepo, application.HashPassword, now, logger),
		auth: application.NewAuthService(application.AuthServiceDeps{
			Admins:          adminRepo,
			Sessions:        adapter.NewSessionRepository(store),
			TokenGenerator:  func() string { return randomHex(32) },
			Now:             now,
			SessionTTL:      cfg.SessionTTL,
			ReportAccessTTL: cfg.ReportAccessTTL,
			Logger:          logger,
		}),
		reports: application.NewReportServiceWithLogger(adapter.NewEventQuery(store, loc), venueRepo, now, logger),
		metrics: observability.NewMetrics(),
		logger:  logger,
	}
}

func (a *app) bootstrapAdmin(ctx context.Context, cfg config.Config) error {
	created, err := a.admins.Bootstrap(ctx, application.AdminInput{
		Username: cfg.InitialAdminUsername,
		Name:     cfg.InitialAdminName,
		Email:    cfg.InitialAdminEmail,
		Password: cfg.InitialAdminPassword,
	})
	if err != nil {
		return err
	}
	if created {
		a.logger.Info("initial super admin created", "username", cfg.InitialAdminUsername)
	}
	return nil
}

func (a *app) handler(cfg config.Config, health func(ctx context.Context) error) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(a.auth, a.logger),
		Venues:         httptransport.NewVenueHandler(a.venues, a.logger),
		Meals:          httptransport.NewMealHandler(a.engine, a.metrics, a.logger),
		Employees:      httptransport.NewEmployeeHandler(a.employees, a.logger),
		Admins:         httptransport.NewAdminHandler(a.admins, a.logger),
		Reports:        httptransport.NewReportHandler(a.reports, a.logger),
		Sessions:       a.auth,
		Metrics:        a.metrics,
		Health:         health,
		LoginRateLimit: cfg.LoginRateLimit,
		MealRateLimit:  cfg.MealRateLimit,
		Logger:         a.logger,
	})
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
