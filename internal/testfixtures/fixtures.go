package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/facematch"
)

var (
	employeeCounter uint64
	venueCounter    uint64
	adminCounter    uint64
	eventCounter    uint64
)

// Location is the fixed zone fixtures use for local meal times.
var Location = time.FixedZone("BRT", -3*60*60)

var referenceTime = time.Date(2024, time.January, 15, 12, 0, 0, 0, Location)

// ReferenceTime returns the canonical baseline timestamp used by fixtures:
// lunch time on a weekday inside every default venue window.
func ReferenceTime() time.Time {
	return referenceTime
}

// Date returns a pointer to a civil date, convenient for venue windows and filters.
func Date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// Signature returns a valid face signature whose first component is v.
// Two such signatures are exactly |a-b| apart.
func Signature(v float64) facematch.Signature {
	sig := make(facematch.Signature, facematch.SignatureLength)
	sig[0] = v
	return sig
}

// --------------------------- Employee fixtures ---------------------------

// EmployeeFixture represents a deterministic employee record.
type EmployeeFixture struct {
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
}

// EmployeeOption configures the generated employee fixture.
type EmployeeOption func(*EmployeeFixture)

// NewEmployeeFixture returns a deterministic employee fixture with optional overrides.
func NewEmployeeFixture(opts ...EmployeeOption) EmployeeFixture {
	idx := atomic.AddUint64(&employeeCounter, 1)
	fixture := EmployeeFixture{
		ID:         fmt.Sprintf("emp-%03d", idx),
		Name:       fmt.Sprintf("Employee %03d", idx),
		Document:   fmt.Sprintf("%011d", 10000000000+idx),
		CostCenter: "CC-100",
		WorkOrder:  fmt.Sprintf("WO-%03d", idx),
		CreatedBy:  "ops",
		CreatedAt:  referenceTime.Add(-time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEmployeeID overrides the generated identifier.
func WithEmployeeID(id string) EmployeeOption {
	return func(f *EmployeeFixture) { f.ID = id }
}

// WithEmployeeName overrides the generated name.
func WithEmployeeName(name string) EmployeeOption {
	return func(f *EmployeeFixture) { f.Name = name }
}

// WithDocument overrides the generated document number.
func WithDocument(document string) EmployeeOption {
	return func(f *EmployeeFixture) { f.Document = document }
}

// WithPermittedVenues replaces the permitted venue set.
func WithPermittedVenues(venues ...string) EmployeeOption {
	return func(f *EmployeeFixture) { f.PermittedVenues = append([]string(nil), venues...) }
}

// WithTwoMeals grants a daily quota of two meals.
func WithTwoMeals() EmployeeOption {
	return func(f *EmployeeFixture) { f.AllowsTwoMeals = true }
}

// WithFaceSignature enrolls the employee with sig.
func WithFaceSignature(sig facematch.Signature) EmployeeOption {
	return func(f *EmployeeFixture) { f.FaceSignature = sig }
}

// WithCreatedBy overrides the owning administrator.
func WithCreatedBy(username string) EmployeeOption {
	return func(f *EmployeeFixture) { f.CreatedBy = username }
}

// WithCostCenter overrides the cost center.
func WithCostCenter(costCenter string) EmployeeOption {
	return func(f *EmployeeFixture) { f.CostCenter = costCenter }
}

// Application converts the fixture into the application model.
func (f EmployeeFixture) Application() application.Employee {
	return application.Employee{
		ID:              f.ID,
		Name:            f.Name,
		Document:        f.Document,
		CostCenter:      f.CostCenter,
		WorkOrder:       f.WorkOrder,
		AllowsTwoMeals:  f.AllowsTwoMeals,
		PermittedVenues: append([]string(nil), f.PermittedVenues...),
		FaceSignature:   append(facematch.Signature(nil), f.FaceSignature...),
		CreatedBy:       f.CreatedBy,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// ---------------------------- Venue fixtures -----------------------------

// VenueFixture represents a deterministic venue. The default window covers
// the whole month of ReferenceTime.
type VenueFixture struct {
	Name       string
	Owner      string
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
}

// VenueOption configures the generated venue fixture.
type VenueOption func(*VenueFixture)

// NewVenueFixture returns a deterministic venue fixture with optional overrides.
func NewVenueFixture(opts ...VenueOption) VenueFixture {
	idx := atomic.AddUint64(&venueCounter, 1)
	fixture := VenueFixture{
		Name:       fmt.Sprintf("Venue %03d", idx),
		Owner:      "ops",
		ValidFrom:  Date(2024, time.January, 1),
		ValidUntil: Date(2024, time.January, 31),
		CreatedAt:  referenceTime.Add(-30 * 24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithVenueName overrides the generated name.
func WithVenueName(name string) VenueOption {
	return func(f *VenueFixture) { f.Name = name }
}

// WithOwner overrides the owning administrator.
func WithOwner(username string) VenueOption {
	return func(f *VenueFixture) { f.Owner = username }
}

// WithWindow sets the inclusive validity window.
func WithWindow(from, until *time.Time) VenueOption {
	return func(f *VenueFixture) {
		f.ValidFrom = from
		f.ValidUntil = until
	}
}

// Unconfigured clears the validity window.
func Unconfigured() VenueOption {
	return WithWindow(nil, nil)
}

// Application converts the fixture into the application model.
func (f VenueFixture) Application() application.Venue {
	return application.Venue{
		Name:       f.Name,
		Owner:      f.Owner,
		ValidFrom:  f.ValidFrom,
		ValidUntil: f.ValidUntil,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
}

// ---------------------------- Admin fixtures -----------------------------

// AdminFixture represents an administrator with a known plaintext password.
type AdminFixture struct {
	Username     string
	Name         string
	Email        string
	Password     string
	IsSuperAdmin bool
}

// AdminOption configures the generated admin fixture.
type AdminOption func(*AdminFixture)

// NewAdminFixture returns a deterministic admin fixture with optional overrides.
func NewAdminFixture(opts ...AdminOption) AdminFixture {
	idx := atomic.AddUint64(&adminCounter, 1)
	fixture := AdminFixture{
		Username: fmt.Sprintf("admin-%03d", idx),
		Name:     fmt.Sprintf("Admin %03d", idx),
		Email:    fmt.Sprintf("admin-%03d@example.com", idx),
		Password: fmt.Sprintf("password-%03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUsername overrides the generated username.
func WithUsername(username string) AdminOption {
	return func(f *AdminFixture) { f.Username = username }
}

// WithPassword overrides the generated password.
func WithPassword(password string) AdminOption {
	return func(f *AdminFixture) { f.Password = password }
}

// AsSuperAdmin grants the super administrator role.
func AsSuperAdmin() AdminOption {
	return func(f *AdminFixture) { f.IsSuperAdmin = true }
}

// Input converts the fixture into admin service input.
func (f AdminFixture) Input() application.AdminInput {
	return application.AdminInput{
		Username:     f.Username,
		Name:         f.Name,
		Email:        f.Email,
		Password:     f.Password,
		IsSuperAdmin: f.IsSuperAdmin,
	}
}

// Principal returns the principal the admin acts as, without report access.
func (f AdminFixture) Principal() application.Principal {
	return application.Principal{Username: f.Username, IsSuperAdmin: f.IsSuperAdmin}
}

// ---------------------------- Event fixtures -----------------------------

// NewMealEvent returns an event for employee at venue occurring at.
func NewMealEvent(employee EmployeeFixture, venue string, at time.Time) application.MealEvent {
	idx := atomic.AddUint64(&eventCounter, 1)
	return application.MealEvent{
		ID:           fmt.Sprintf("evt-fixture-%03d", idx),
		Venue:        venue,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		CostCenter:   employee.CostCenter,
		WorkOrder:    employee.WorkOrder,
		OccurredAt:   at,
	}
}
