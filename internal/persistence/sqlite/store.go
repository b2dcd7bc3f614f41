// Package sqlite implements the persistence repositories on SQLite using the
// pure Go modernc.org/sqlite driver. The schema is embedded and applied by
// Migrate.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/example/meal-access/internal/persistence"
	"github.com/example/meal-access/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const dateLayout = "2006-01-02"

// civilTimestampLayout stores local wall-clock time without a zone.
const civilTimestampLayout = "2006-01-02 15:04:05"

// timestampLayout is fixed width so that stored UTC instants sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store bundles the SQLite repositories over one connection pool.
type Store struct {
	*AdminRepository
	*EmployeeRepository
	*VenueRepository
	*EventRepository
	*SessionRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database described by cfg. Call Migrate before use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	retry := NewRetryHelper(DefaultRetryConfig())
	base := repository{pool: pool, retry: retry}
	return &Store{
		AdminRepository:    &AdminRepository{base},
		EmployeeRepository: &EmployeeRepository{base},
		VenueRepository:    &VenueRepository{base},
		EventRepository:    &EventRepository{base},
		SessionRepository:  &SessionRepository{base},
		pool:               pool,
		logger:             logger,
	}, nil
}

// Migrate applies pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager, err := s.migrations()
	if err != nil {
		return err
	}
	return manager.Run(ctx)
}

// SchemaVersion returns the latest applied migration version, or "" for an
// empty database.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	manager, err := s.migrations()
	if err != nil {
		return "", err
	}
	status, err := manager.Status(ctx)
	if err != nil {
		return "", err
	}
	return status.CurrentVersion, nil
}

func (s *Store) migrations() (*migration.Manager, error) {
	source, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("sqlite: migrations: %w", err)
	}
	return migration.NewManager(s.pool.DB(), source, s.logger), nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// repository carries the shared handles of every table repository.
type repository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper ErrorMapper
}

func (r repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := r.retry.WithRetry(ctx, func() error {
		var execErr error
		result, execErr = r.pool.DB().ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

// execAffecting runs a write and reports ErrNotFound when no row changed.
func (r repository) execAffecting(ctx context.Context, query string, args ...any) error {
	result, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse %s: %w", column, err)
	}
	return t, nil
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseNullTimestamp(column string, value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(column, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseNullDate(column string, value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("sqlite: parse %s: %w", column, err)
	}
	return &t, nil
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode json: %w", err)
	}
	return string(data), nil
}
