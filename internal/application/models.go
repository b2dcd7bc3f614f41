package application

import (
	"slices"
	"time"

	"github.com/example/meal-access/internal/facematch"
)

// DateLayout formats civil dates for venues windows and meal days.
const DateLayout = "2006-01-02"

// TimestampLayout formats local civil timestamps of meal events.
const TimestampLayout = "2006-01-02 15:04:05"

// Principal is the request-scoped operator identity passed into every service.
type Principal struct {
	Username          string
	IsSuperAdmin      bool
	SessionID         string
	ReportAccessUntil *time.Time
}

// owns reports whether the principal may act on a record owned by owner.
func (p Principal) owns(owner string) bool {
	return p.IsSuperAdmin || (p.Username != "" && p.Username == owner)
}

// canReadReports reports whether the re-authentication capability is still valid at now.
func (p Principal) canReadReports(now time.Time) bool {
	return p.ReportAccessUntil != nil && p.ReportAccessUntil.After(now)
}

// Employee is a person allowed to take meals at one or more venues.
type Employee struct {
	ID              string
	Name            string
	Document        string
	CostCenter      string
	WorkOrder       string
	AllowsTwoMeals  bool
	PermittedVenues []string
	FaceSignature   facematch.Signature
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DailyQuota returns how many meals the employee may take per calendar day.
func (e Employee) DailyQuota() int {
	if e.AllowsTwoMeals {
		return 2
	}
	return 1
}

// Permits reports whether venue is in the employee's permitted set.
func (e Employee) Permits(venue string) bool {
	return slices.Contains(e.PermittedVenues, venue)
}

// HasFaceSignature reports whether biometric enrollment was completed.
func (e Employee) HasFaceSignature() bool {
	return len(e.FaceSignature) > 0
}

// Venue is a restaurant with its own validity window.
type Venue struct {
	Name       string
	Owner      string
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Configured reports whether both ends of the validity window are set.
func (v Venue) Configured() bool {
	return v.ValidFrom != nil && v.ValidUntil != nil
}

// AcceptsOn reports whether day lies inside the inclusive validity window.
func (v Venue) AcceptsOn(day time.Time) bool {
	if !v.Configured() {
		return false
	}
	d := civilDate(day)
	return !d.Before(civilDate(*v.ValidFrom)) && !d.After(civilDate(*v.ValidUntil))
}

// MealEvent is an immutable record of an authorized meal.
type MealEvent struct {
	ID           string
	Venue        string
	EmployeeID   string
	EmployeeName string
	CostCenter   string
	WorkOrder    string
	OccurredAt   time.Time
}

// Day returns the civil date of the event in its own location.
func (m MealEvent) Day() time.Time {
	return civilDate(m.OccurredAt)
}

// Admin is a platform or restaurant administrator account.
type Admin struct {
	Username     string
	Name         string
	Email        string
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AdminCredentials couples an admin with the stored password hash.
type AdminCredentials struct {
	Admin        Admin
	PasswordHash string
}

// Session is an authenticated operator session.
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

// EmployeeInput captures caller provided employee attributes.
type EmployeeInput struct {
	ID             string
	Name           string
	Document       string
	CostCenter     string
	WorkOrder      string
	AllowsTwoMeals bool
}

// CreateEmployeeParams wraps the data required to create an employee.
type CreateEmployeeParams struct {
	Principal       Principal
	Input           EmployeeInput
	PermittedVenues []string
}

// UpdateEmployeeParams wraps the data required to update employee attributes.
type UpdateEmployeeParams struct {
	Principal  Principal
	EmployeeID string
	Input      EmployeeInput
}

// UpdatePermissionsParams replaces an employee's permitted venue set.
type UpdatePermissionsParams struct {
	Principal       Principal
	EmployeeID      string
	PermittedVenues []string
}

// EnrollFaceParams carries the enrollment photo for an employee.
type EnrollFaceParams struct {
	Principal  Principal
	EmployeeID string
	Photo      []byte
}

// VenueInput captures caller provided venue attributes.
type VenueInput struct {
	Name       string
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// CreateVenueParams wraps the data required to create a venue.
type CreateVenueParams struct {
	Principal Principal
	Input     VenueInput
}

// UpdateVenueParams wraps the data required to change a venue's window.
type UpdateVenueParams struct {
	Principal Principal
	VenueName string
	Input     VenueInput
}

// AdminInput captures caller provided admin attributes.
type AdminInput struct {
	Username     string
	Name         string
	Email        string
	Password     string
	IsSuperAdmin bool
}

// AuthorizeParams identifies the employee by Document or Photo at Venue.
type AuthorizeParams struct {
	Principal Principal
	Venue     string
	Document  string
	Photo     []byte
}

// Authorization is the outcome of a successful authorization attempt.
type Authorization struct {
	Employee Employee
	Event    MealEvent
	Quota    int
	Used     int
}

// EventFilter narrows meal event listings. Text fields match substrings.
type EventFilter struct {
	From         *time.Time
	To           *time.Time
	Venue        string
	EmployeeName string
	CostCenter   string
	WorkOrder    string
	Venues       []string
}

// ReportRow is a meal event joined with the employee's current document.
type ReportRow struct {
	Event    MealEvent
	Document string
}

// AuthenticateParams captures login credentials.
type AuthenticateParams struct {
	Username string
	Password string
}

// AuthenticateResult captures the outcome of a successful login.
type AuthenticateResult struct {
	Admin   Admin
	Session Session
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
