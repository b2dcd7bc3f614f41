package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/meal-access/internal/facematch"
)

// EmployeeService manages the employee directory. Restaurant administrators
// only see and change the employees they created; super administrators see
// everyone.
type EmployeeService struct {
	employees EmployeeRepository
	venues    VenueRepository
	extractor facematch.Extractor
	now       func() time.Time
	logger    *slog.Logger
}

// NewEmployeeService wires dependencies for the employee service.
func NewEmployeeService(employees EmployeeRepository, venues VenueRepository, extractor facematch.Extractor, now func() time.Time) *EmployeeService {
	return NewEmployeeServiceWithLogger(employees, venues, extractor, now, nil)
}

// NewEmployeeServiceWithLogger wires dependencies for the employee service with a specific logger.
func NewEmployeeServiceWithLogger(employees EmployeeRepository, venues VenueRepository, extractor facematch.Extractor, now func() time.Time, logger *slog.Logger) *EmployeeService {
	if now == nil {
		now = time.Now
	}
	return &EmployeeService{
		employees: employees,
		venues:    venues,
		extractor: extractor,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (s *EmployeeService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EmployeeService", operation, attrs...)
}

func (s *EmployeeService) ready() error {
	if s == nil {
		return fmt.Errorf("EmployeeService is nil")
	}
	if s.employees == nil || s.venues == nil {
		return fmt.Errorf("employee service not configured")
	}
	return nil
}

// CreateEmployee validates input and stores a new employee owned by the principal.
func (s *EmployeeService) CreateEmployee(ctx context.Context, params CreateEmployeeParams) (employee Employee, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input := normalizeEmployeeInput(params.Input)
	logger := s.loggerWith(ctx, "CreateEmployee", "principal", params.Principal.Username, "employee_id", input.ID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to create employee", err)
			return
		}
		logger.InfoContext(ctx, "employee created", "permitted_venues", len(employee.PermittedVenues))
	}()

	if params.Principal.Username == "" {
		err = ErrUnauthorized
		return
	}
	if vErr := validateEmployeeInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var venues []string
	venues, err = s.checkVenues(ctx, params.Principal, params.PermittedVenues)
	if err != nil {
		return
	}

	now := s.now()
	employee = Employee{
		ID:              input.ID,
		Name:            input.Name,
		Document:        input.Document,
		CostCenter:      input.CostCenter,
		WorkOrder:       input.WorkOrder,
		AllowsTwoMeals:  input.AllowsTwoMeals,
		PermittedVenues: venues,
		CreatedBy:       params.Principal.Username,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err = s.employees.CreateEmployee(ctx, employee); err != nil {
		err = mapRepoError(err)
		employee = Employee{}
	}
	return
}

// UpdateEmployee replaces the employee's attributes. The ID, permissions and
// face signature are left unchanged.
func (s *EmployeeService) UpdateEmployee(ctx context.Context, params UpdateEmployeeParams) (employee Employee, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateEmployee", "principal", params.Principal.Username, "employee_id", params.EmployeeID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to update employee", err)
			return
		}
		logger.InfoContext(ctx, "employee updated")
	}()

	employee, err = s.owned(ctx, params.Principal, params.EmployeeID)
	if err != nil {
		return
	}

	input := normalizeEmployeeInput(params.Input)
	input.ID = employee.ID
	if vErr := validateEmployeeInput(input); vErr.HasErrors() {
		err = vErr
		employee = Employee{}
		return
	}

	employee.Name = input.Name
	employee.Document = input.Document
	employee.CostCenter = input.CostCenter
	employee.WorkOrder = input.WorkOrder
	employee.AllowsTwoMeals = input.AllowsTwoMeals
	employee, err = s.save(ctx, employee)
	return
}

// UpdatePermissions replaces the set of venues where the employee may eat.
func (s *EmployeeService) UpdatePermissions(ctx context.Context, params UpdatePermissionsParams) (employee Employee, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdatePermissions", "principal", params.Principal.Username, "employee_id", params.EmployeeID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to update permissions", err)
			return
		}
		logger.InfoContext(ctx, "permissions updated", "permitted_venues", employee.PermittedVenues)
	}()

	employee, err = s.owned(ctx, params.Principal, params.EmployeeID)
	if err != nil {
		return
	}

	var venues []string
	if venues, err = s.checkVenues(ctx, params.Principal, params.PermittedVenues); err != nil {
		employee = Employee{}
		return
	}
	employee.PermittedVenues = venues
	employee, err = s.save(ctx, employee)
	return
}

// EnrollFace extracts a signature from photo and stores it on the employee,
// replacing any previous enrollment.
func (s *EmployeeService) EnrollFace(ctx context.Context, params EnrollFaceParams) (employee Employee, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if s.extractor == nil {
		err = fmt.Errorf("face extractor not configured")
		return
	}

	logger := s.loggerWith(ctx, "EnrollFace", "principal", params.Principal.Username, "employee_id", params.EmployeeID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "face enrollment failed", err)
			return
		}
		logger.InfoContext(ctx, "face enrolled")
	}()

	if len(params.Photo) == 0 {
		err = fieldError("photo", "photo is required")
		return
	}

	employee, err = s.owned(ctx, params.Principal, params.EmployeeID)
	if err != nil {
		return
	}

	var signature facematch.Signature
	signature, err = s.extractor.Extract(ctx, params.Photo)
	if err != nil {
		if errors.Is(err, facematch.ErrEmptyPhoto) {
			err = fieldError("photo", "photo is required")
		}
		employee = Employee{}
		return
	}

	employee.FaceSignature = signature
	employee, err = s.save(ctx, employee)
	return
}

// ClearFace removes the employee's face signature so that only document
// identification works.
func (s *EmployeeService) ClearFace(ctx context.Context, principal Principal, employeeID string) (employee Employee, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ClearFace", "principal", principal.Username, "employee_id", employeeID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to clear face", err)
			return
		}
		logger.InfoContext(ctx, "face signature cleared")
	}()

	employee, err = s.owned(ctx, principal, employeeID)
	if err != nil {
		return
	}
	employee.FaceSignature = nil
	employee, err = s.save(ctx, employee)
	return
}

// DeleteEmployee removes the employee. Recorded meal events are kept.
func (s *EmployeeService) DeleteEmployee(ctx context.Context, principal Principal, employeeID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteEmployee", "principal", principal.Username, "employee_id", employeeID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to delete employee", err)
			return
		}
		logger.InfoContext(ctx, "employee deleted")
	}()

	if _, err = s.owned(ctx, principal, employeeID); err != nil {
		return
	}
	return mapRepoError(s.employees.DeleteEmployee(ctx, strings.TrimSpace(employeeID)))
}

// GetEmployee returns one employee visible to the principal.
func (s *EmployeeService) GetEmployee(ctx context.Context, principal Principal, employeeID string) (Employee, error) {
	if err := s.ready(); err != nil {
		return Employee{}, err
	}
	return s.owned(ctx, principal, employeeID)
}

// ListEmployees returns the employees visible to the principal ordered by ID.
func (s *EmployeeService) ListEmployees(ctx context.Context, principal Principal) ([]Employee, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if principal.Username == "" {
		return nil, ErrUnauthorized
	}

	createdBy := principal.Username
	if principal.IsSuperAdmin {
		createdBy = ""
	}
	employees, err := s.employees.ListEmployees(ctx, createdBy)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return employees, nil
}

// owned loads the employee and checks that the principal may manage it.
func (s *EmployeeService) owned(ctx context.Context, principal Principal, employeeID string) (Employee, error) {
	if principal.Username == "" {
		return Employee{}, ErrUnauthorized
	}
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return Employee{}, fieldError("id", "employee id is required")
	}
	employee, err := s.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return Employee{}, mapRepoError(err)
	}
	if !principal.owns(employee.CreatedBy) {
		return Employee{}, ErrUnauthorized
	}
	return employee, nil
}

func (s *EmployeeService) save(ctx context.Context, employee Employee) (Employee, error) {
	employee.UpdatedAt = s.now()
	if err := s.employees.UpdateEmployee(ctx, employee); err != nil {
		return Employee{}, mapRepoError(err)
	}
	return employee, nil
}

// checkVenues trims and de-duplicates names, and requires every venue to
// exist and be owned by the principal.
func (s *EmployeeService) checkVenues(ctx context.Context, principal Principal, names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	venues := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		venue, err := s.venues.GetVenue(ctx, name)
		if err != nil {
			if errors.Is(mapRepoError(err), ErrNotFound) {
				return nil, fieldError("permitted_venues", fmt.Sprintf("venue %q does not exist", name))
			}
			return nil, err
		}
		if !principal.owns(venue.Owner) {
			return nil, ErrUnauthorized
		}
		venues = append(venues, venue.Name)
	}
	return venues, nil
}

func normalizeEmployeeInput(input EmployeeInput) EmployeeInput {
	return EmployeeInput{
		ID:             strings.TrimSpace(input.ID),
		Name:           strings.TrimSpace(input.Name),
		Document:       NormalizeDocument(input.Document),
		CostCenter:     strings.TrimSpace(input.CostCenter),
		WorkOrder:      strings.TrimSpace(input.WorkOrder),
		AllowsTwoMeals: input.AllowsTwoMeals,
	}
}

func validateEmployeeInput(input EmployeeInput) *ValidationError {
	vErr := &ValidationError{}
	if input.ID == "" {
		vErr.add("id", "employee id is required")
	} else if strings.ContainsAny(input.ID, "/ \t") {
		vErr.add("id", "employee id must not contain spaces or slashes")
	}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Document == "" {
		vErr.add("document", "document is required")
	}
	return vErr
}
