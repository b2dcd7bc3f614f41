// Package memory implements the persistence repositories in process memory.
// It mirrors the SQLite store's semantics and is used by tests and by the
// service's --memory mode.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/meal-access/internal/persistence"
)

// Store provides an in-memory persistence layer.
type Store struct {
	mu        sync.RWMutex
	admins    map[string]persistence.Admin
	employees map[string]persistence.Employee
	venues    map[string]persistence.Venue
	events    []persistence.MealEvent
	sessions  map[string]persistence.Session
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		admins:    make(map[string]persistence.Admin),
		employees: make(map[string]persistence.Employee),
		venues:    make(map[string]persistence.Venue),
		sessions:  make(map[string]persistence.Session),
	}
}

// Close releases resources held by the store. No-op for the in-memory implementation.
func (s *Store) Close() error {
	return nil
}

// --- AdminRepository implementation ---

// CreateAdmin stores a new administrator.
func (s *Store) CreateAdmin(ctx context.Context, admin persistence.Admin) error {
	if admin.Username == "" || admin.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[admin.Username]; ok {
		return fmt.Errorf("memory: admin %s: %w", admin.Username, persistence.ErrDuplicate)
	}
	s.admins[admin.Username] = admin
	return nil
}

// UpdateAdmin replaces an existing administrator.
func (s *Store) UpdateAdmin(ctx context.Context, admin persistence.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.admins[admin.Username]
	if !ok {
		return persistence.ErrNotFound
	}
	if admin.PasswordHash == "" {
		admin.PasswordHash = existing.PasswordHash
	}
	admin.CreatedAt = existing.CreatedAt
	s.admins[admin.Username] = admin
	return nil
}

// GetAdmin retrieves an administrator by username.
func (s *Store) GetAdmin(ctx context.Context, username string) (persistence.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.admins[username]
	if !ok {
		return persistence.Admin{}, persistence.ErrNotFound
	}
	return admin, nil
}

// ListAdmins returns administrators ordered by username.
func (s *Store) ListAdmins(ctx context.Context) ([]persistence.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admins := make([]persistence.Admin, 0, len(s.admins))
	for _, admin := range s.admins {
		admins = append(admins, admin)
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].Username < admins[j].Username })
	return admins, nil
}

// DeleteAdmin removes an administrator and their sessions.
func (s *Store) DeleteAdmin(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[username]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.admins, username)
	for token, session := range s.sessions {
		if session.Username == username {
			delete(s.sessions, token)
		}
	}
	return nil
}

// CountAdmins returns the number of administrators.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.admins), nil
}

// --- EmployeeRepository implementation ---

// CreateEmployee stores a new employee. IDs and documents are unique.
func (s *Store) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" || employee.Document == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[employee.ID]; ok {
		return fmt.Errorf("memory: employee %s: %w", employee.ID, persistence.ErrDuplicate)
	}
	if err := s.ensureUniqueDocumentLocked(employee.ID, employee.Document); err != nil {
		return err
	}
	s.employees[employee.ID] = cloneEmployee(employee)
	return nil
}

// UpdateEmployee replaces an existing employee.
func (s *Store) UpdateEmployee(ctx context.Context, employee persistence.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.employees[employee.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueDocumentLocked(employee.ID, employee.Document); err != nil {
		return err
	}
	employee.CreatedAt = existing.CreatedAt
	employee.CreatedBy = existing.CreatedBy
	s.employees[employee.ID] = cloneEmployee(employee)
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id string) (persistence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, ok := s.employees[id]
	if !ok {
		return persistence.Employee{}, persistence.ErrNotFound
	}
	return cloneEmployee(employee), nil
}

// GetEmployeeByDocument retrieves an employee by normalized document.
func (s *Store) GetEmployeeByDocument(ctx context.Context, document string) (persistence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, employee := range s.employees {
		if employee.Document == document {
			return cloneEmployee(employee), nil
		}
	}
	return persistence.Employee{}, persistence.ErrNotFound
}

// ListEmployees returns employees ordered by ID, optionally restricted to a creator.
func (s *Store) ListEmployees(ctx context.Context, createdBy string) ([]persistence.Employee, error) {
	return s.listEmployees(func(e persistence.Employee) bool {
		return createdBy == "" || e.CreatedBy == createdBy
	}), nil
}

// ListEmployeesWithSignatureForVenue returns enrolled employees permitted at venue, ordered by ID.
func (s *Store) ListEmployeesWithSignatureForVenue(ctx context.Context, venue string) ([]persistence.Employee, error) {
	return s.listEmployees(func(e persistence.Employee) bool {
		return len(e.FaceSignature) > 0 && slices.Contains(e.PermittedVenues, venue)
	}), nil
}

// DeleteEmployee removes an employee. Recorded meal events are kept.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.employees, id)
	return nil
}

func (s *Store) listEmployees(keep func(persistence.Employee) bool) []persistence.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]persistence.Employee, 0, len(s.employees))
	for _, employee := range s.employees {
		if keep(employee) {
			employees = append(employees, cloneEmployee(employee))
		}
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })
	return employees
}

func (s *Store) ensureUniqueDocumentLocked(id, document string) error {
	for existingID, employee := range s.employees {
		if existingID != id && employee.Document == document {
			return fmt.Errorf("memory: document already registered: %w", persistence.ErrDuplicate)
		}
	}
	return nil
}

// --- VenueRepository implementation ---

// CreateVenue stores a new venue.
func (s *Store) CreateVenue(ctx context.Context, venue persistence.Venue) error {
	if venue.Name == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.venues[venue.Name]; ok {
		return fmt.Errorf("memory: venue %s: %w", venue.Name, persistence.ErrDuplicate)
	}
	s.venues[venue.Name] = cloneVenue(venue)
	return nil
}

// UpdateVenue replaces the validity window of an existing venue.
func (s *Store) UpdateVenue(ctx context.Context, venue persistence.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.venues[venue.Name]
	if !ok {
		return persistence.ErrNotFound
	}
	existing.ValidFrom = cloneTime(venue.ValidFrom)
	existing.ValidUntil = cloneTime(venue.ValidUntil)
	existing.UpdatedAt = venue.UpdatedAt
	s.venues[venue.Name] = existing
	return nil
}

// GetVenue retrieves a venue by name.
func (s *Store) GetVenue(ctx context.Context, name string) (persistence.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	venue, ok := s.venues[name]
	if !ok {
		return persistence.Venue{}, persistence.ErrNotFound
	}
	return cloneVenue(venue), nil
}

// ListVenues returns venues ordered by name, optionally restricted to an owner.
func (s *Store) ListVenues(ctx context.Context, owner string) ([]persistence.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	venues := make([]persistence.Venue, 0, len(s.venues))
	for _, venue := range s.venues {
		if owner == "" || venue.Owner == owner {
			venues = append(venues, cloneVenue(venue))
		}
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i].Name < venues[j].Name })
	return venues, nil
}

// DeleteVenue removes a venue. Employee permission lists keep dangling names.
func (s *Store) DeleteVenue(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.venues[name]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.venues, name)
	return nil
}

// --- EventRepository implementation ---

// InsertEvent appends a meal event.
func (s *Store) InsertEvent(ctx context.Context, event persistence.MealEvent) error {
	if event.ID == "" || event.EmployeeID == "" || event.Day == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.events {
		if existing.ID == event.ID {
			return fmt.Errorf("memory: event %s: %w", event.ID, persistence.ErrDuplicate)
		}
	}
	s.events = append(s.events, event)
	return nil
}

// CountEvents counts events for employeeID on day (YYYY-MM-DD).
func (s *Store) CountEvents(ctx context.Context, employeeID, day string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, event := range s.events {
		if event.EmployeeID == employeeID && event.Day == day {
			count++
		}
	}
	return count, nil
}

// ListEvents returns matching events, newest first.
func (s *Store) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.EventRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk backwards so the stable sort leaves same-instant events in
	// reverse insertion order.
	rows := make([]persistence.EventRow, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if !matchesFilter(event, filter) {
			continue
		}
		row := persistence.EventRow{Event: event}
		if employee, ok := s.employees[event.EmployeeID]; ok {
			row.Document = employee.Document
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Event.OccurredAt.After(rows[j].Event.OccurredAt)
	})
	return rows, nil
}

func matchesFilter(event persistence.MealEvent, filter persistence.EventFilter) bool {
	if filter.From != "" && event.Day < filter.From {
		return false
	}
	if filter.To != "" && event.Day > filter.To {
		return false
	}
	if filter.Venues != nil && !slices.Contains(filter.Venues, event.Venue) {
		return false
	}
	return containsFold(event.Venue, filter.Venue) &&
		containsFold(event.EmployeeName, filter.EmployeeName) &&
		containsFold(event.CostCenter, filter.CostCenter) &&
		containsFold(event.WorkOrder, filter.WorkOrder)
}

func containsFold(value, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}

// --- SessionRepository implementation ---

// CreateSession stores a new session keyed by token.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.Token == "" || session.Username == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.ErrDuplicate
	}
	s.sessions[session.Token] = cloneSession(session)
	return nil
}

// GetSession retrieves a session by token.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// UpdateSession replaces a stored session.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; !ok {
		return persistence.ErrNotFound
	}
	s.sessions[session.Token] = cloneSession(session)
	return nil
}

// DeleteExpiredSessions removes sessions that expired at or before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func cloneEmployee(e persistence.Employee) persistence.Employee {
	e.PermittedVenues = append([]string(nil), e.PermittedVenues...)
	if e.FaceSignature != nil {
		e.FaceSignature = append([]float64(nil), e.FaceSignature...)
	}
	return e
}

func cloneVenue(v persistence.Venue) persistence.Venue {
	v.ValidFrom = cloneTime(v.ValidFrom)
	v.ValidUntil = cloneTime(v.ValidUntil)
	return v
}

func cloneSession(s persistence.Session) persistence.Session {
	s.ReportAccessUntil = cloneTime(s.ReportAccessUntil)
	s.RevokedAt = cloneTime(s.RevokedAt)
	return s
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
