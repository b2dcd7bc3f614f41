package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/meal-access/internal/application"
)

type fakeSessionValidator struct {
	principal application.Principal
	err       error
	seen      *string
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	if f.seen != nil {
		*f.seen = token
	}
	return f.principal, f.err
}

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name           string
			cookieToken    *http.Cookie
			headerToken    string
			lookupError    error
			expectedStatus int
			expectedCode   string
		}{
			{
				name:           "missing credentials",
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_REQUIRED",
			},
			{
				name:           "non bearer header",
				headerToken:    "Basic abc",
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_REQUIRED",
			},
			{
				name:           "unknown session",
				headerToken:    "Bearer unknown",
				lookupError:    application.ErrUnauthorized,
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_SESSION_INVALID",
			},
			{
				name:           "revoked session",
				cookieToken:    &http.Cookie{Name: sessionCookieName, Value: "revoked-token"},
				lookupError:    application.ErrSessionRevoked,
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_SESSION_REVOKED",
			},
			{
				name:           "expired session",
				cookieToken:    &http.Cookie{Name: sessionCookieName, Value: "old-token"},
				lookupError:    application.ErrSessionExpired,
				expectedStatus: http.StatusUnauthorized,
				expectedCode:   "AUTH_SESSION_EXPIRED",
			},
			{
				name:           "storage failure",
				headerToken:    "Bearer transient",
				lookupError:    errors.New("disk I/O error"),
				expectedStatus: http.StatusInternalServerError,
			},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookieToken != nil {
					req.AddCookie(tc.cookieToken)
				}
				if tc.headerToken != "" {
					req.Header.Set("Authorization", tc.headerToken)
				}
				recorder := httptest.NewRecorder()

				handler := RequireSession(fakeSessionValidator{err: tc.lookupError}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(recorder, req)

				require.Equal(t, tc.expectedStatus, recorder.Code)
				if tc.expectedCode != "" {
					assert.Equal(t, tc.expectedCode, decodeError(t, recorder).ErrorCode)
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{Username: "ana", SessionID: "s-1"}
		var seen string

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "valid-token"})
		recorder := httptest.NewRecorder()

		var (
			captured application.Principal
			token    string
		)
		handler := RequireSession(fakeSessionValidator{principal: principal, seen: &seen}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ok bool
			captured, ok = PrincipalFromContext(r.Context())
			require.True(t, ok, "expected principal in request context")
			token, _ = SessionTokenFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(recorder, req)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, principal, captured)
		assert.Equal(t, "valid-token", token)
		assert.Equal(t, "valid-token", seen)
	})

	t.Run("bearer header wins over cookie", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer  header-token ")
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cookie-token"})
		assert.Equal(t, "header-token", extractTokenFromRequest(req))
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := middleware.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/brew"`)
	assert.NotContains(t, out, `"request_id":""`)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	handler := RateLimit(1, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, second).ErrorCode)

	// Authenticated callers are keyed by username, not by IP.
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), application.Principal{Username: "ana"}))
	third := httptest.NewRecorder()
	handler.ServeHTTP(third, req)
	require.Equal(t, http.StatusNoContent, third.Code)
}

func TestSecureHeaders(t *testing.T) {
	t.Parallel()

	handler := SecureHeaders(nil, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.True(t, strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'none'"))
}
