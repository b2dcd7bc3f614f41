package adapter

import (
	"context"
	"time"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/persistence"
)

// SessionRepository adapts persistence sessions to application.SessionRepository.
type SessionRepository struct {
	repo persistence.SessionRepository
}

var _ application.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository wraps repo.
func NewSessionRepository(repo persistence.SessionRepository) *SessionRepository {
	return &SessionRepository{repo: repo}
}

func (a *SessionRepository) CreateSession(ctx context.Context, session application.Session) error {
	return a.repo.CreateSession(ctx, toPersistenceSession(session))
}

func (a *SessionRepository) GetSession(ctx context.Context, token string) (application.Session, error) {
	record, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(record), nil
}

func (a *SessionRepository) UpdateSession(ctx context.Context, session application.Session) error {
	return a.repo.UpdateSession(ctx, toPersistenceSession(session))
}

func (a *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}
