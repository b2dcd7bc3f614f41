package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/meal-access/internal/application"
)

type employeeService interface {
	CreateEmployee(ctx context.Context, params application.CreateEmployeeParams) (application.Employee, error)
	UpdateEmployee(ctx context.Context, params application.UpdateEmployeeParams) (application.Employee, error)
	UpdatePermissions(ctx context.Context, params application.UpdatePermissionsParams) (application.Employee, error)
	EnrollFace(ctx context.Context, params application.EnrollFaceParams) (application.Employee, error)
	ClearFace(ctx context.Context, principal application.Principal, employeeID string) (application.Employee, error)
	DeleteEmployee(ctx context.Context, principal application.Principal, employeeID string) error
	GetEmployee(ctx context.Context, principal application.Principal, employeeID string) (application.Employee, error)
	ListEmployees(ctx context.Context, principal application.Principal) ([]application.Employee, error)
}

type EmployeeHandler struct {
	service   employeeService
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

func NewEmployeeHandler(service employeeService, logger *slog.Logger) *EmployeeHandler {
	base := defaultLogger(logger)
	return &EmployeeHandler{service: service, validate: newValidator(), responder: newResponder(base), logger: base}
}

func (h *EmployeeHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EmployeeHandler", operation, attrs...)
}

func (h *EmployeeHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal", principal.Username)

	employees, err := h.service.ListEmployees(r.Context(), principal)
	if err != nil {
		logger.WarnContext(r.Context(), "employee list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]employeeDTO, 0, len(employees))
	for _, employee := range employees {
		dtos = append(dtos, toEmployeeDTO(employee))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEmployeesResponse{Employees: dtos})
}

func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := pathParam(r, "id")
	principal, _ := PrincipalFromContext(r.Context())

	employee, err := h.service.GetEmployee(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), "Get", "principal", principal.Username, "employee_id", id).
			WarnContext(r.Context(), "employee lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeResponse{Employee: toEmployeeDTO(employee)})
}

func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal", principal.Username, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode employee request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := validateRequest(h.validate, req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal", principal.Username, "employee_id", req.ID)
	employee, err := h.service.CreateEmployee(r.Context(), application.CreateEmployeeParams{
		Principal:       principal,
		Input:           req.toInput(),
		PermittedVenues: req.PermittedVenues,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "employee creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, employeeResponse{Employee: toEmployeeDTO(employee)})
}

// Update replaces the employee attributes; permissions and face enrollment
// have their own endpoints.
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := pathParam(r, "id")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal", principal.Username, "employee_id", id)

	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode employee update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	req.ID = id
	if err := validateRequest(h.validate, req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	employee, err := h.service.UpdateEmployee(r.Context(), application.UpdateEmployeeParams{
		Principal:  principal,
		EmployeeID: id,
		Input:      req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "employee update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeResponse{Employee: toEmployeeDTO(employee)})
}

func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := pathParam(r, "id")
	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteEmployee(r.Context(), principal, id); err != nil {
		h.log(r.Context(), "Delete", "principal", principal.Username, "employee_id", id).
			WarnContext(r.Context(), "employee delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// UpdateVenues replaces the employee's permitted venue set.
func (h *EmployeeHandler) UpdateVenues(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := pathParam(r, "id")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "UpdateVenues", "principal", principal.Username, "employee_id", id)

	var req permissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode permissions", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := validateRequest(h.validate, req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	employee, err := h.service.UpdatePermissions(r.Context(), application.UpdatePermissionsParams{
		Principal:       principal,
		EmployeeID:      id,
		PermittedVenues: req.Venues,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "permission update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeResponse{Employee: toEmployeeDTO(employee)})
}

// EnrollFace stores the face signature extracted from a multipart "photo"
// upload or from a raw image body.
func (h *EmployeeHandler) EnrollFace(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := pathParam(r, "id")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "EnrollFace", "principal", principal.Username, "employee_id", id)

	var (
		photo []byte
		err   error
	)
	if isMultipart(r) {
		photo, err = readPhoto(w, r)
	} else {
		photo, err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPhotoBytes))
	}
	if err != nil {
		logger.WarnContext(r.Context(), "failed to read enrollment photo", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	employee, err := h.service.EnrollFace(r.Context(), application.EnrollFaceParams{
		Principal:  principal,
		EmployeeID: id,
		Photo:      photo,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "face enrollment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeResponse{Employee: toEmployeeDTO(employee)})
}

func (h *EmployeeHandler) ClearFace(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := pathParam(r, "id")
	principal, _ := PrincipalFromContext(r.Context())

	employee, err := h.service.ClearFace(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), "ClearFace", "principal", principal.Username, "employee_id", id).
			WarnContext(r.Context(), "face removal failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeResponse{Employee: toEmployeeDTO(employee)})
}

type employeeRequest struct {
	ID              string   `json:"id" validate:"required,max=64,excludesall=/"`
	Name            string   `json:"name" validate:"required,max=120"`
	Document        string   `json:"document" validate:"required,max=32"`
	CostCenter      string   `json:"cost_center" validate:"max=64"`
	WorkOrder       string   `json:"work_order" validate:"max=64"`
	AllowsTwoMeals  bool     `json:"allows_two_meals"`
	PermittedVenues []string `json:"permitted_venues" validate:"dive,required"`
}

func (r employeeRequest) toInput() application.EmployeeInput {
	return application.EmployeeInput{
		ID:             strings.TrimSpace(r.ID),
		Name:           strings.TrimSpace(r.Name),
		Document:       r.Document,
		CostCenter:     strings.TrimSpace(r.CostCenter),
		WorkOrder:      strings.TrimSpace(r.WorkOrder),
		AllowsTwoMeals: r.AllowsTwoMeals,
	}
}

type permissionsRequest struct {
	Venues []string `json:"venues" validate:"dive,required"`
}

type employeeDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Document        string   `json:"document"`
	CostCenter      string   `json:"cost_center"`
	WorkOrder       string   `json:"work_order"`
	AllowsTwoMeals  bool     `json:"allows_two_meals"`
	DailyQuota      int      `json:"daily_quota"`
	PermittedVenues []string `json:"permitted_venues"`
	FaceEnrolled    bool     `json:"face_enrolled"`
	CreatedBy       string   `json:"created_by"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

type employeeResponse struct {
	Employee employeeDTO `json:"employee"`
}

type listEmployeesResponse struct {
	Employees []employeeDTO `json:"employees"`
}

func toEmployeeDTO(employee application.Employee) employeeDTO {
	venues := employee.PermittedVenues
	if venues == nil {
		venues = []string{}
	}
	dto := employeeDTO{
		ID:              employee.ID,
		Name:            employee.Name,
		Document:        employee.Document,
		CostCenter:      employee.CostCenter,
		WorkOrder:       employee.WorkOrder,
		AllowsTwoMeals:  employee.AllowsTwoMeals,
		DailyQuota:      employee.DailyQuota(),
		PermittedVenues: venues,
		FaceEnrolled:    employee.HasFaceSignature(),
		CreatedBy:       employee.CreatedBy,
	}
	if !employee.UpdatedAt.IsZero() {
		dto.UpdatedAt = employee.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
