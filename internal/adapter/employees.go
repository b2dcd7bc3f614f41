package adapter

import (
	"context"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/persistence"
)

// EmployeeRepository adapts persistence employees to application.EmployeeRepository.
type EmployeeRepository struct {
	repo persistence.EmployeeRepository
}

var _ application.EmployeeRepository = (*EmployeeRepository)(nil)

// NewEmployeeRepository wraps repo.
func NewEmployeeRepository(repo persistence.EmployeeRepository) *EmployeeRepository {
	return &EmployeeRepository{repo: repo}
}

func (a *EmployeeRepository) CreateEmployee(ctx context.Context, employee application.Employee) error {
	return a.repo.CreateEmployee(ctx, toPersistenceEmployee(employee))
}

func (a *EmployeeRepository) GetEmployee(ctx context.Context, id string) (application.Employee, error) {
	record, err := a.repo.GetEmployee(ctx, id)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(record), nil
}

func (a *EmployeeRepository) UpdateEmployee(ctx context.Context, employee application.Employee) error {
	return a.repo.UpdateEmployee(ctx, toPersistenceEmployee(employee))
}

func (a *EmployeeRepository) DeleteEmployee(ctx context.Context, id string) error {
	return a.repo.DeleteEmployee(ctx, id)
}

func (a *EmployeeRepository) ListEmployees(ctx context.Context, createdBy string) ([]application.Employee, error) {
	records, err := a.repo.ListEmployees(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	return toApplicationEmployees(records), nil
}

// IdentityStore adapts persistence employees to application.IdentityStore.
type IdentityStore struct {
	repo persistence.EmployeeRepository
}

var _ application.IdentityStore = (*IdentityStore)(nil)

// NewIdentityStore wraps repo.
func NewIdentityStore(repo persistence.EmployeeRepository) *IdentityStore {
	return &IdentityStore{repo: repo}
}

func (a *IdentityStore) FindEmployeeByDocument(ctx context.Context, document string) (application.Employee, error) {
	record, err := a.repo.GetEmployeeByDocument(ctx, document)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(record), nil
}

func (a *IdentityStore) FindEmployeeByID(ctx context.Context, id string) (application.Employee, error) {
	record, err := a.repo.GetEmployee(ctx, id)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(record), nil
}

func (a *IdentityStore) ListEmployeesWithSignatureForVenue(ctx context.Context, venue string) ([]application.Employee, error) {
	records, err := a.repo.ListEmployeesWithSignatureForVenue(ctx, venue)
	if err != nil {
		return nil, err
	}
	return toApplicationEmployees(records), nil
}

func toApplicationEmployees(records []persistence.Employee) []application.Employee {
	employees := make([]application.Employee, 0, len(records))
	for _, record := range records {
		employees = append(employees, toApplicationEmployee(record))
	}
	return employees
}
