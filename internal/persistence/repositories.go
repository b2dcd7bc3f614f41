package persistence

import (
	"context"
	"time"
)

// AdminRepository exposes CRUD operations for administrators.
type AdminRepository interface {
	CreateAdmin(ctx context.Context, admin Admin) error
	UpdateAdmin(ctx context.Context, admin Admin) error
	GetAdmin(ctx context.Context, username string) (Admin, error)
	ListAdmins(ctx context.Context) ([]Admin, error)
	DeleteAdmin(ctx context.Context, username string) error
	CountAdmins(ctx context.Context) (int, error)
}

// EmployeeRepository exposes CRUD and lookup operations for employees.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	UpdateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	GetEmployeeByDocument(ctx context.Context, document string) (Employee, error)
	ListEmployees(ctx context.Context, createdBy string) ([]Employee, error)
	ListEmployeesWithSignatureForVenue(ctx context.Context, venue string) ([]Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
}

// VenueRepository exposes CRUD operations for venues.
type VenueRepository interface {
	CreateVenue(ctx context.Context, venue Venue) error
	UpdateVenue(ctx context.Context, venue Venue) error
	GetVenue(ctx context.Context, name string) (Venue, error)
	ListVenues(ctx context.Context, owner string) ([]Venue, error)
	DeleteVenue(ctx context.Context, name string) error
}

// EventRepository stores meal events. There is no update or delete.
type EventRepository interface {
	InsertEvent(ctx context.Context, event MealEvent) error
	CountEvents(ctx context.Context, employeeID, day string) (int, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]EventRow, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// Store is the full set of repositories backed by one storage engine.
type Store interface {
	AdminRepository
	EmployeeRepository
	VenueRepository
	EventRepository
	SessionRepository
	Close() error
}
