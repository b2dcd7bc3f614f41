package application

import (
	"context"
	"time"
)

// IdentityStore is the read side of the employee directory used for resolution.
type IdentityStore interface {
	FindEmployeeByDocument(ctx context.Context, document string) (Employee, error)
	FindEmployeeByID(ctx context.Context, id string) (Employee, error)
	ListEmployeesWithSignatureForVenue(ctx context.Context, venue string) ([]Employee, error)
}

// VenueCatalog looks up venues by name.
type VenueCatalog interface {
	FindVenue(ctx context.Context, name string) (Venue, error)
}

// MealLedger is the append-only store of authorized meal events.
type MealLedger interface {
	CountEvents(ctx context.Context, employeeID string, day time.Time) (int, error)
	InsertEvent(ctx context.Context, event MealEvent) error
}

// EmployeeRepository captures employee administration storage.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	UpdateEmployee(ctx context.Context, employee Employee) error
	DeleteEmployee(ctx context.Context, id string) error
	// ListEmployees returns employees created by createdBy, or all when empty.
	ListEmployees(ctx context.Context, createdBy string) ([]Employee, error)
}

// VenueRepository captures venue administration storage.
type VenueRepository interface {
	CreateVenue(ctx context.Context, venue Venue) error
	GetVenue(ctx context.Context, name string) (Venue, error)
	UpdateVenue(ctx context.Context, venue Venue) error
	DeleteVenue(ctx context.Context, name string) error
	// ListVenues returns venues owned by owner, or all when empty.
	ListVenues(ctx context.Context, owner string) ([]Venue, error)
}

// AdminRepository captures administrator account storage.
type AdminRepository interface {
	CreateAdmin(ctx context.Context, admin Admin, passwordHash string) error
	GetAdminCredentials(ctx context.Context, username string) (AdminCredentials, error)
	UpdateAdmin(ctx context.Context, admin Admin, passwordHash string) error
	DeleteAdmin(ctx context.Context, username string) error
	ListAdmins(ctx context.Context) ([]Admin, error)
	CountAdmins(ctx context.Context) (int, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// EventQuery lists recorded meal events for reports.
type EventQuery interface {
	ListEvents(ctx context.Context, filter EventFilter) ([]ReportRow, error)
}
