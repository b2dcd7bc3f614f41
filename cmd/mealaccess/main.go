package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/meal-access/internal/config"
	"github.com/example/meal-access/internal/logging"
)

type options struct {
	envFile     string
	migrateOnly bool
	memory      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "mealaccess:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("mealaccess", pflag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&opts.envFile, "env-file", ".env", "path to a .env file loaded before reading the environment")
	flags.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	flags.BoolVar(&opts.memory, "memory", false, "keep all data in memory (nothing is persisted)")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if opts.memory && opts.migrateOnly {
		return options{}, errors.New("--memory and --migrate-only are mutually exclusive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(stdout, cfg.LogFormat, cfg.Level())

	store, err := openStore(ctx, cfg, opts, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if opts.migrateOnly {
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			logger.Error("failed to read schema version", "error", err)
			return err
		}
		logger.Info("migrations applied", "dsn", cfg.SQLiteDSN, "schema_version", version)
		return nil
	}

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure lock backend", "backend", cfg.LockBackend, "error", err)
		return err
	}
	defer func() {
		if cerr := locker.Close(); cerr != nil {
			logger.Error("failed to close lock backend", "error", cerr)
		}
	}()

	svc := newApp(cfg, store.Store, locker.Locker, newFaceExtractor(cfg, logger), logger)
	if cfg.HasInitialAdmin() {
		if err := svc.bootstrapAdmin(ctx, cfg); err != nil {
			logger.Error("failed to bootstrap initial admin", "error", err)
			return err
		}
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.handler(cfg, store.Health),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("meal access API listening",
		"addr", server.Addr,
		"timezone", cfg.Location().String(),
		"lock_backend", cfg.LockBackend,
		"memory", opts.memory,
	)
	return serve(ctx, server, cfg.ShutdownTimeout, logger)
}

// serve runs server until ctx is cancelled and then drains in-flight requests.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server encountered error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to shutdown server", "error", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
