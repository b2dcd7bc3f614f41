package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthServiceDeps groups the collaborators of AuthService.
type AuthServiceDeps struct {
	Admins          AdminRepository
	Sessions        SessionRepository
	Verify          PasswordVerifier
	TokenGenerator  func() string
	Now             func() time.Time
	SessionTTL      time.Duration
	ReportAccessTTL time.Duration
	Logger          *slog.Logger
}

// AuthService coordinates operator login, session validation, logout and the
// password re-check that unlocks reports.
type AuthService struct {
	admins          AdminRepository
	sessions        SessionRepository
	verifyPassword  PasswordVerifier
	tokenGenerator  func() string
	now             func() time.Time
	sessionTTL      time.Duration
	reportAccessTTL time.Duration
	logger          *slog.Logger
}

// ReauthenticateParams carries the password re-check for the session behind Token.
type ReauthenticateParams struct {
	Token    string
	Password string
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(deps AuthServiceDeps) *AuthService {
	if deps.Verify == nil {
		deps.Verify = VerifyPassword
	}
	if deps.TokenGenerator == nil {
		deps.TokenGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 12 * time.Hour
	}
	if deps.ReportAccessTTL <= 0 {
		deps.ReportAccessTTL = 15 * time.Minute
	}
	return &AuthService{
		admins:          deps.Admins,
		sessions:        deps.Sessions,
		verifyPassword:  deps.Verify,
		tokenGenerator:  deps.TokenGenerator,
		now:             deps.Now,
		sessionTTL:      deps.SessionTTL,
		reportAccessTTL: deps.ReportAccessTTL,
		logger:          defaultLogger(deps.Logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a new session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.admins == nil || s.sessions == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	username := strings.TrimSpace(params.Username)
	logger := s.loggerWith(ctx, "Authenticate", "username", username)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "authentication failed", err)
			return
		}
		logger.With("session_id", result.Session.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if username == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds AdminCredentials
	creds, err = s.admins.GetAdminCredentials(ctx, username)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if s.verifyPassword(creds.PasswordHash, params.Password) != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	id := s.tokenGenerator()
	token := s.tokenGenerator()
	if token == "" {
		token = id
	}
	session := Session{
		ID:        id,
		Username:  creds.Admin.Username,
		Token:     token,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return
	}
	if err = s.sessions.CreateSession(ctx, session); err != nil {
		err = mapRepoError(err)
		return
	}

	result = AuthenticateResult{Admin: creds.Admin, Session: session}
	return
}

// ValidateSession verifies that token belongs to an active session and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.admins == nil || s.sessions == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	logger := s.loggerWith(ctx, "ValidateSession")
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "session validation failed", err)
			return
		}
		logger.With("principal", principal.Username).DebugContext(ctx, "session validated")
	}()

	var session Session
	session, err = s.activeSession(ctx, token)
	if err != nil {
		return
	}

	var creds AdminCredentials
	creds, err = s.admins.GetAdminCredentials(ctx, session.Username)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	principal = Principal{
		Username:          creds.Admin.Username,
		IsSuperAdmin:      creds.Admin.IsSuperAdmin,
		SessionID:         session.ID,
		ReportAccessUntil: cloneTime(session.ReportAccessUntil),
	}
	return
}

// Logout revokes the session behind token and prunes expired sessions.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	logger := s.loggerWith(ctx, "Logout")
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "logout failed", err)
			return
		}
		logger.InfoContext(ctx, "session revoked")
	}()

	var session Session
	session, err = s.activeSession(ctx, token)
	if err != nil {
		return
	}

	now := s.now()
	session.RevokedAt = &now
	session.ReportAccessUntil = nil
	session.UpdatedAt = now
	if err = s.sessions.UpdateSession(ctx, session); err != nil {
		err = mapRepoError(err)
		return
	}
	err = s.sessions.DeleteExpiredSessions(ctx, now)
	return
}

// Reauthenticate re-checks the operator's password and grants report access
// on the session for the configured window. The grant replaces any previous one.
func (s *AuthService) Reauthenticate(ctx context.Context, params ReauthenticateParams) (until time.Time, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.admins == nil || s.sessions == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Reauthenticate")
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "reauthentication failed", err)
			return
		}
		logger.With("report_access_until", until).InfoContext(ctx, "report access granted")
	}()

	var session Session
	session, err = s.activeSession(ctx, params.Token)
	if err != nil {
		return
	}

	var creds AdminCredentials
	creds, err = s.admins.GetAdminCredentials(ctx, session.Username)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}
	if params.Password == "" || s.verifyPassword(creds.PasswordHash, params.Password) != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	until = now.Add(s.reportAccessTTL)
	if until.After(session.ExpiresAt) {
		until = session.ExpiresAt
	}
	session.ReportAccessUntil = &until
	session.UpdatedAt = now
	if err = s.sessions.UpdateSession(ctx, session); err != nil {
		err = mapRepoError(err)
	}
	return
}

// activeSession loads the session behind token and rejects revoked or expired ones.
func (s *AuthService) activeSession(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}

	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return Session{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.After(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return session, nil
}
