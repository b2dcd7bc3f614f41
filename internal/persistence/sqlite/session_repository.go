package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/meal-access/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository.
type SessionRepository struct {
	repository
}

const sessionColumns = `id, username, token, expires_at, report_access_until, revoked_at, created_at, updated_at`

// CreateSession stores a new session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.Username == "" || strings.TrimSpace(session.Token) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Username,
		session.Token,
		formatTimestamp(session.ExpiresAt),
		nullTimestamp(session.ReportAccessUntil),
		nullTimestamp(session.RevokedAt),
		formatTimestamp(session.CreatedAt),
		formatTimestamp(session.UpdatedAt),
	)
	return err
}

// GetSession retrieves a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, token)

	var (
		session                    persistence.Session
		expiresAt, created, update string
		reportUntil, revokedAt     sql.NullString
	)
	if err := row.Scan(&session.ID, &session.Username, &session.Token, &expiresAt,
		&reportUntil, &revokedAt, &created, &update); err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	var err error
	if session.ExpiresAt, err = parseTimestamp("expires_at", expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.ReportAccessUntil, err = parseNullTimestamp("report_access_until", reportUntil); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = parseNullTimestamp("revoked_at", revokedAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTimestamp("created_at", created); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTimestamp("updated_at", update); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// UpdateSession updates the mutable fields of the session identified by token.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) error {
	return r.execAffecting(ctx, `
		UPDATE sessions
		SET expires_at = ?, report_access_until = ?, revoked_at = ?, updated_at = ?
		WHERE token = ?`,
		formatTimestamp(session.ExpiresAt),
		nullTimestamp(session.ReportAccessUntil),
		nullTimestamp(session.RevokedAt),
		formatTimestamp(session.UpdatedAt),
		session.Token,
	)
}

// DeleteExpiredSessions removes sessions that expired at or before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTimestamp(reference))
	return err
}
