package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/meal-access/internal/application"
)

// MaxPhotoBytes bounds photo uploads for meal registration and face enrollment.
const MaxPhotoBytes = 8 << 20

type mealAuthorizer interface {
	Authorize(ctx context.Context, params application.AuthorizeParams) (application.Authorization, error)
}

// AuthorizationRecorder receives one observation per meal attempt.
type AuthorizationRecorder interface {
	RecordAuthorization(venue, outcome, reason string)
}

// MealHandler registers meals at a venue by document number or photo.
type MealHandler struct {
	engine    mealAuthorizer
	recorder  AuthorizationRecorder
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

func NewMealHandler(engine mealAuthorizer, recorder AuthorizationRecorder, logger *slog.Logger) *MealHandler {
	base := defaultLogger(logger)
	return &MealHandler{engine: engine, recorder: recorder, validate: newValidator(), responder: newResponder(base), logger: base}
}

func (h *MealHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MealHandler", operation, attrs...)
}

// Register accepts either a JSON body {"document": "..."} or a multipart
// form with a "photo" file.
func (h *MealHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	venue := pathParam(r, "name")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Register", "principal", principal.Username, "venue", venue)

	params := application.AuthorizeParams{Principal: principal, Venue: venue}
	if isMultipart(r) {
		photo, err := readPhoto(w, r)
		if err != nil {
			logger.WarnContext(r.Context(), "failed to read photo upload", "error", err)
			h.writeUploadError(r.Context(), w, err)
			return
		}
		params.Photo = photo
	} else {
		var req mealRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WarnContext(r.Context(), "failed to decode meal request", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		if err := validateRequest(h.validate, req); err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		params.Document = req.Document
	}

	auth, err := h.engine.Authorize(r.Context(), params)
	result := application.ResultOf(auth, err)
	if h.recorder != nil {
		h.recorder.RecordAuthorization(venueLabel(venue, result.Outcome, err), string(result.Outcome), string(result.Reason))
	}

	if err != nil {
		if result.Outcome == application.OutcomeDenied {
			logger.InfoContext(r.Context(), "meal denied", "reason", result.Reason, "employee", result.EmployeeName)
			h.responder.writeJSON(r.Context(), w, http.StatusForbidden, mealResponse{
				Outcome:      string(result.Outcome),
				Reason:       string(result.Reason),
				EmployeeName: result.EmployeeName,
				Message:      err.Error(),
			})
			return
		}
		logger.WarnContext(r.Context(), "meal not registered", "outcome", result.Outcome, "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "meal authorized", "employee_id", auth.Employee.ID, "event_id", auth.Event.ID)
	event := toEventDTO(auth.Event)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, mealResponse{
		Outcome:      string(result.Outcome),
		EmployeeID:   auth.Employee.ID,
		EmployeeName: auth.Employee.Name,
		Quota:        auth.Quota,
		Used:         auth.Used,
		Event:        &event,
	})
}

// unknownVenueLabel replaces the venue label for attempts that never resolved a venue.
const unknownVenueLabel = "unknown"

// venueLabel returns the venue as a metric label only once the engine has
// looked it up and the principal may use it.
func venueLabel(venue string, outcome application.AuthorizationOutcome, err error) string {
	switch outcome {
	case application.OutcomeAuthorized, application.OutcomeDenied,
		application.OutcomeNoFaceDetected, application.OutcomeMultipleFaces:
		return strings.TrimSpace(venue)
	case application.OutcomeNotFound:
		if !errors.Is(err, application.ErrVenueNotFound) {
			return strings.TrimSpace(venue)
		}
	}
	return unknownVenueLabel
}

func (h *MealHandler) writeUploadError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPhotoTooLarge):
		h.responder.writeError(ctx, w, http.StatusRequestEntityTooLarge, err)
	case errors.Is(err, errMissingPhoto):
		h.responder.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "INVALID_INPUT",
			Message:   err.Error(),
			Errors:    map[string]string{"photo": "photo is required"},
		})
	default:
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
	}
}

type mealRequest struct {
	Document string `json:"document" validate:"required,max=32"`
}

type mealResponse struct {
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	EmployeeName string    `json:"employee_name,omitempty"`
	Quota        int       `json:"quota,omitempty"`
	Used         int       `json:"used,omitempty"`
	Message      string    `json:"message,omitempty"`
	Event        *eventDTO `json:"event,omitempty"`
}

type eventDTO struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Venue        string `json:"venue"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	CostCenter   string `json:"cost_center,omitempty"`
	WorkOrder    string `json:"work_order,omitempty"`
	Document     string `json:"document,omitempty"`
}

func toEventDTO(event application.MealEvent) eventDTO {
	return eventDTO{
		ID:           event.ID,
		Date:         event.OccurredAt.Format(application.DateLayout),
		Time:         event.OccurredAt.Format(time.TimeOnly),
		Venue:        event.Venue,
		EmployeeID:   event.EmployeeID,
		EmployeeName: event.EmployeeName,
		CostCenter:   event.CostCenter,
		WorkOrder:    event.WorkOrder,
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// readPhoto reads the "photo" part of a multipart upload, capped at MaxPhotoBytes.
func readPhoto(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(MaxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errPhotoTooLarge
		}
		return nil, err
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errMissingPhoto
		}
		return nil, err
	}
	defer file.Close()

	photo, err := io.ReadAll(io.LimitReader(file, MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(photo) > MaxPhotoBytes {
		return nil, errPhotoTooLarge
	}
	if len(photo) == 0 {
		return nil, errMissingPhoto
	}
	return photo, nil
}
