package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/example/meal-access/internal/application"
)

type venueService interface {
	CreateVenue(ctx context.Context, params application.CreateVenueParams) (application.Venue, error)
	UpdateVenue(ctx context.Context, params application.UpdateVenueParams) (application.Venue, error)
	DeleteVenue(ctx context.Context, principal application.Principal, name string) error
	ListVenues(ctx context.Context, principal application.Principal) ([]application.Venue, error)
}

type VenueHandler struct {
	service   venueService
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

func NewVenueHandler(service venueService, logger *slog.Logger) *VenueHandler {
	base := defaultLogger(logger)
	return &VenueHandler{service: service, validate: newValidator(), responder: newResponder(base), logger: base}
}

func (h *VenueHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "VenueHandler", operation, attrs...)
}

func (h *VenueHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal", principal.Username)

	venues, err := h.service.ListVenues(r.Context(), principal)
	if err != nil {
		logger.WarnContext(r.Context(), "venue list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]venueDTO, 0, len(venues))
	for _, venue := range venues {
		dtos = append(dtos, toVenueDTO(venue))
	}
	logger.With("result_count", len(dtos)).DebugContext(r.Context(), "venues listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listVenuesResponse{Venues: dtos})
}

func (h *VenueHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req venueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal", principal.Username, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode venue request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput(h.validate)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal", principal.Username, "venue", input.Name)
	venue, err := h.service.CreateVenue(r.Context(), application.CreateVenueParams{Principal: principal, Input: input})
	if err != nil {
		logger.WarnContext(r.Context(), "venue creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, venueResponse{Venue: toVenueDTO(venue)})
}

// Update replaces the validity window of the venue named in the path.
func (h *VenueHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	name := pathParam(r, "name")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal", principal.Username, "venue", name)

	var req venueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode venue update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	req.Name = name
	input, err := req.toInput(h.validate)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	venue, err := h.service.UpdateVenue(r.Context(), application.UpdateVenueParams{
		Principal: principal,
		VenueName: name,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "venue update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, venueResponse{Venue: toVenueDTO(venue)})
}

func (h *VenueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	name := pathParam(r, "name")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal", principal.Username, "venue", name)

	if err := h.service.DeleteVenue(r.Context(), principal, name); err != nil {
		logger.WarnContext(r.Context(), "venue delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type venueRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	ValidFrom  string `json:"valid_from" validate:"omitempty,datetime=2006-01-02"`
	ValidUntil string `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
}

func (r venueRequest) toInput(v *validator.Validate) (application.VenueInput, error) {
	if err := validateRequest(v, r); err != nil {
		return application.VenueInput{}, err
	}
	from, err := parseDate("valid_from", r.ValidFrom)
	if err != nil {
		return application.VenueInput{}, err
	}
	until, err := parseDate("valid_until", r.ValidUntil)
	if err != nil {
		return application.VenueInput{}, err
	}
	return application.VenueInput{Name: strings.TrimSpace(r.Name), ValidFrom: from, ValidUntil: until}, nil
}

type venueDTO struct {
	Name       string  `json:"name"`
	Owner      string  `json:"owner"`
	ValidFrom  *string `json:"valid_from"`
	ValidUntil *string `json:"valid_until"`
	Configured bool    `json:"configured"`
}

type venueResponse struct {
	Venue venueDTO `json:"venue"`
}

type listVenuesResponse struct {
	Venues []venueDTO `json:"venues"`
}

func toVenueDTO(venue application.Venue) venueDTO {
	return venueDTO{
		Name:       venue.Name,
		Owner:      venue.Owner,
		ValidFrom:  formatDate(venue.ValidFrom),
		ValidUntil: formatDate(venue.ValidUntil),
		Configured: venue.Configured(),
	}
}

// pathParam returns the unescaped chi URL parameter key.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if value, err := url.PathUnescape(raw); err == nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(raw)
}
