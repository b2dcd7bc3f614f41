package persistence

import "time"

// Admin is a stored administrator account.
type Admin struct {
	Username     string
	Name         string
	Email        string
	PasswordHash string
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Employee is a stored employee. Document holds digits only.
type Employee struct {
	ID              string
	Name            string
	Document        string
	CostCenter      string
	WorkOrder       string
	AllowsTwoMeals  bool
	PermittedVenues []string
	FaceSignature   []float64
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Venue is a stored restaurant. ValidFrom and ValidUntil are civil dates.
type Venue struct {
	Name       string
	Owner      string
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MealEvent is an append-only ledger entry. OccurredAt keeps the local
// civil time it was recorded with; Day is its calendar date.
type MealEvent struct {
	ID           string
	Venue        string
	EmployeeID   string
	EmployeeName string
	CostCenter   string
	WorkOrder    string
	Day          string
	OccurredAt   time.Time
}

// Session is a stored operator session.
type Session struct {
	ID                string
	Username          string
	Token             string
	ExpiresAt         time.Time
	ReportAccessUntil *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	RevokedAt         *time.Time
}

// EventFilter narrows meal event queries. From/To compare calendar days
// inclusively; text fields are case-insensitive substring matches; a
// non-nil Venues restricts results to that set.
type EventFilter struct {
	From         string
	To           string
	Venue        string
	EmployeeName string
	CostCenter   string
	WorkOrder    string
	Venues       []string
}

// EventRow is a meal event with the employee's current document, when the
// employee still exists.
type EventRow struct {
	Event    MealEvent
	Document string
}
