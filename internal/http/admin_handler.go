package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/meal-access/internal/application"
)

type adminService interface {
	CreateAdmin(ctx context.Context, params application.CreateAdminParams) (application.Admin, error)
	UpdateAdmin(ctx context.Context, params application.UpdateAdminParams) (application.Admin, error)
	DeleteAdmin(ctx context.Context, principal application.Principal, username string) error
	ListAdmins(ctx context.Context, principal application.Principal) ([]application.Admin, error)
}

// AdminHandler manages operator accounts. The service restricts every call to super admins.
type AdminHandler struct {
	service   adminService
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(service adminService, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{service: service, validate: newValidator(), responder: newResponder(base), logger: base}
}

func (h *AdminHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AdminHandler", operation, attrs...)
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal", principal.Username)

	admins, err := h.service.ListAdmins(r.Context(), principal)
	if err != nil {
		logger.WarnContext(r.Context(), "admin list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]adminDTO, 0, len(admins))
	for _, admin := range admins {
		dtos = append(dtos, toAdminDTO(admin))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAdminsResponse{Admins: dtos})
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal", principal.Username, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode admin request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := validateRequest(h.validate, req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal", principal.Username, "username", req.Username)
	admin, err := h.service.CreateAdmin(r.Context(), application.CreateAdminParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "admin creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, adminResponse{Admin: toAdminDTO(admin)})
}

func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	username := pathParam(r, "username")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal", principal.Username, "username", username)

	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode admin update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	req.Username = username
	if err := validateRequest(h.validate, req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	admin, err := h.service.UpdateAdmin(r.Context(), application.UpdateAdminParams{
		Principal: principal,
		Username:  username,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "admin update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, adminResponse{Admin: toAdminDTO(admin)})
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	username := pathParam(r, "username")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal", principal.Username, "username", username)

	if err := h.service.DeleteAdmin(r.Context(), principal, username); err != nil {
		logger.WarnContext(r.Context(), "admin delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type adminRequest struct {
	Username     string `json:"username" validate:"required,max=64,excludesall=/"`
	Name         string `json:"name" validate:"required,max=120"`
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password" validate:"omitempty,min=8"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

func (r adminRequest) toInput() application.AdminInput {
	return application.AdminInput{
		Username:     strings.TrimSpace(r.Username),
		Name:         strings.TrimSpace(r.Name),
		Email:        strings.TrimSpace(r.Email),
		Password:     r.Password,
		IsSuperAdmin: r.IsSuperAdmin,
	}
}

type adminDTO struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type adminResponse struct {
	Admin adminDTO `json:"admin"`
}

type listAdminsResponse struct {
	Admins []adminDTO `json:"admins"`
}

func toAdminDTO(admin application.Admin) adminDTO {
	dto := adminDTO{
		Username:     admin.Username,
		Name:         admin.Name,
		Email:        admin.Email,
		IsSuperAdmin: admin.IsSuperAdmin,
	}
	if !admin.CreatedAt.IsZero() {
		dto.CreatedAt = admin.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
