package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/meal-access/internal/persistence"
)

// EmployeeRepository implements persistence.EmployeeRepository.
type EmployeeRepository struct {
	repository
}

const employeeColumns = `id, name, document, cost_center, work_order, allows_two_meals,
	permitted_venues, face_signature, created_by, created_at, updated_at`

// CreateEmployee inserts a new employee. Duplicate IDs or documents yield ErrDuplicate.
func (r *EmployeeRepository) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" || employee.Document == "" {
		return persistence.ErrConstraintViolation
	}
	venues, signature, err := encodeEmployeeJSON(employee)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx,
		`INSERT INTO employees (`+employeeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		employee.ID,
		employee.Name,
		employee.Document,
		employee.CostCenter,
		employee.WorkOrder,
		employee.AllowsTwoMeals,
		venues,
		signature,
		employee.CreatedBy,
		formatTimestamp(employee.CreatedAt),
		formatTimestamp(employee.UpdatedAt),
	)
	return err
}

// UpdateEmployee replaces every mutable column of an employee.
func (r *EmployeeRepository) UpdateEmployee(ctx context.Context, employee persistence.Employee) error {
	venues, signature, err := encodeEmployeeJSON(employee)
	if err != nil {
		return err
	}
	return r.execAffecting(ctx, `
		UPDATE employees
		SET name = ?, document = ?, cost_center = ?, work_order = ?, allows_two_meals = ?,
		    permitted_venues = ?, face_signature = ?, updated_at = ?
		WHERE id = ?`,
		employee.Name,
		employee.Document,
		employee.CostCenter,
		employee.WorkOrder,
		employee.AllowsTwoMeals,
		venues,
		signature,
		formatTimestamp(employee.UpdatedAt),
		employee.ID,
	)
}

// GetEmployee retrieves an employee by ID.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, id string) (persistence.Employee, error) {
	return r.getOne(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
}

// GetEmployeeByDocument retrieves an employee by normalized document.
func (r *EmployeeRepository) GetEmployeeByDocument(ctx context.Context, document string) (persistence.Employee, error) {
	return r.getOne(ctx, `SELECT `+employeeColumns+` FROM employees WHERE document = ?`, document)
}

// ListEmployees returns employees ordered by ID; a non-empty createdBy filters by creator.
func (r *EmployeeRepository) ListEmployees(ctx context.Context, createdBy string) ([]persistence.Employee, error) {
	return r.list(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE (? = '' OR created_by = ?) ORDER BY id`,
		createdBy, createdBy,
	)
}

// ListEmployeesWithSignatureForVenue returns enrolled employees permitted at venue, ordered by ID.
func (r *EmployeeRepository) ListEmployeesWithSignatureForVenue(ctx context.Context, venue string) ([]persistence.Employee, error) {
	return r.list(ctx, `
		SELECT `+employeeColumns+` FROM employees
		WHERE face_signature IS NOT NULL
		  AND EXISTS (SELECT 1 FROM json_each(employees.permitted_venues) WHERE json_each.value = ?)
		ORDER BY id`,
		venue,
	)
}

// DeleteEmployee removes an employee. Meal events keep their copied attributes.
func (r *EmployeeRepository) DeleteEmployee(ctx context.Context, id string) error {
	return r.execAffecting(ctx, `DELETE FROM employees WHERE id = ?`, id)
}

func (r *EmployeeRepository) getOne(ctx context.Context, query string, arg string) (persistence.Employee, error) {
	employee, err := scanEmployee(r.pool.DB().QueryRowContext(ctx, query, arg))
	if err != nil {
		return persistence.Employee{}, r.mapper.MapError(err)
	}
	return employee, nil
}

func (r *EmployeeRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Employee, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	employees := make([]persistence.Employee, 0)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func encodeEmployeeJSON(employee persistence.Employee) (string, sql.NullString, error) {
	permitted := employee.PermittedVenues
	if permitted == nil {
		permitted = []string{}
	}
	venues, err := encodeJSON(permitted)
	if err != nil {
		return "", sql.NullString{}, err
	}
	if len(employee.FaceSignature) == 0 {
		return venues, sql.NullString{}, nil
	}
	signature, err := encodeJSON(employee.FaceSignature)
	if err != nil {
		return "", sql.NullString{}, err
	}
	return venues, sql.NullString{String: signature, Valid: true}, nil
}

func scanEmployee(row scanner) (persistence.Employee, error) {
	var (
		employee           persistence.Employee
		venues             string
		signature          sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(
		&employee.ID,
		&employee.Name,
		&employee.Document,
		&employee.CostCenter,
		&employee.WorkOrder,
		&employee.AllowsTwoMeals,
		&venues,
		&signature,
		&employee.CreatedBy,
		&createdAt,
		&updated,
	); err != nil {
		return persistence.Employee{}, err
	}

	if err := json.Unmarshal([]byte(venues), &employee.PermittedVenues); err != nil {
		return persistence.Employee{}, fmt.Errorf("sqlite: decode permitted_venues of %s: %w", employee.ID, err)
	}
	if signature.Valid && signature.String != "" {
		if err := json.Unmarshal([]byte(signature.String), &employee.FaceSignature); err != nil {
			return persistence.Employee{}, fmt.Errorf("sqlite: decode face_signature of %s: %w", employee.ID, err)
		}
	}

	var err error
	if employee.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Employee{}, err
	}
	if employee.UpdatedAt, err = parseTimestamp("updated_at", updated); err != nil {
		return persistence.Employee{}, err
	}
	return employee, nil
}
