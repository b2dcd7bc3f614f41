package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/facematch"
)

var (
	errBadRequestBody      = errors.New("request body is malformed")
	errMissingSessionToken = errors.New("a session token is required")
	errMissingPhoto        = errors.New("photo upload is required")
	errPhotoTooLarge       = errors.New("photo exceeds the upload limit")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, resp := errorPayload(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, resp)
}

// errorPayload maps the application error taxonomy onto HTTP statuses.
func errorPayload(err error) (int, errorResponse) {
	var denied *application.AccessDeniedError
	if errors.As(err, &denied) {
		return http.StatusForbidden, errorResponse{ErrorCode: string(denied.Reason), Message: denied.Error()}
	}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "INVALID_INPUT",
			Message:   statusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		}
	}

	switch {
	case errors.Is(err, application.ErrReauthenticationRequired):
		return http.StatusForbidden, errorResponse{ErrorCode: "REAUTHENTICATION_REQUIRED", Message: "confirm your password to open reports"}
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{ErrorCode: "AUTH_FORBIDDEN", Message: statusMessage(http.StatusForbidden)}
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_CREDENTIALS", Message: "username or password is incorrect"}
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_SESSION_EXPIRED", Message: "session expired, log in again"}
	case errors.Is(err, application.ErrSessionRevoked):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_SESSION_REVOKED", Message: "session ended, log in again"}
	case errors.Is(err, application.ErrVenueNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: "VENUE_NOT_FOUND", Message: "venue not found"}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: statusMessage(http.StatusNotFound)}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: statusMessage(http.StatusConflict)}
	case errors.Is(err, application.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, errorResponse{ErrorCode: "NO_FACE_DETECTED", Message: "no face detected in the photo"}
	case errors.Is(err, application.ErrMultipleFaces):
		return http.StatusUnprocessableEntity, errorResponse{ErrorCode: "MULTIPLE_FACES", Message: "more than one face in the photo, retake it"}
	case errors.Is(err, facematch.ErrEmptyPhoto):
		return http.StatusUnprocessableEntity, errorResponse{ErrorCode: "INVALID_INPUT", Message: errMissingPhoto.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "request is malformed"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "not allowed to perform this operation"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusConflict:
		return "resource already exists"
	case http.StatusUnprocessableEntity:
		return "input is invalid"
	case http.StatusTooManyRequests:
		return "too many requests, try again later"
	default:
		return "internal server error"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
