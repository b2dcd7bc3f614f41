package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/meal-access/internal/facematch"
)

var errStub = errors.New("stub failure")

// fakeStore is an in-package implementation of every repository port.
type fakeStore struct {
	mu        sync.Mutex
	employees map[string]Employee
	venues    map[string]Venue
	admins    map[string]AdminCredentials
	sessions  map[string]Session
	events    []MealEvent

	insertErr     error
	countErr      error
	deleteExpired []time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employees: make(map[string]Employee),
		venues:    make(map[string]Venue),
		admins:    make(map[string]AdminCredentials),
		sessions:  make(map[string]Session),
	}
}

func (f *fakeStore) FindEmployeeByDocument(_ context.Context, document string) (Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.employees {
		if e.Document == document {
			return e, nil
		}
	}
	return Employee{}, ErrNotFound
}

func (f *fakeStore) FindEmployeeByID(_ context.Context, id string) (Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) ListEmployeesWithSignatureForVenue(_ context.Context, venue string) ([]Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Employee
	for _, e := range f.employees {
		if e.HasFaceSignature() && e.Permits(venue) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) FindVenue(ctx context.Context, name string) (Venue, error) {
	return f.GetVenue(ctx, name)
}

func (f *fakeStore) CountEvents(_ context.Context, employeeID string, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, e := range f.events {
		if e.EmployeeID == employeeID && e.Day().Equal(civilDate(day)) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertEvent(_ context.Context, event MealEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeStore) CreateEmployee(_ context.Context, employee Employee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.employees[employee.ID]; ok {
		return ErrAlreadyExists
	}
	for _, e := range f.employees {
		if e.Document == employee.Document {
			return ErrAlreadyExists
		}
	}
	f.employees[employee.ID] = employee
	return nil
}

func (f *fakeStore) GetEmployee(ctx context.Context, id string) (Employee, error) {
	return f.FindEmployeeByID(ctx, id)
}

func (f *fakeStore) UpdateEmployee(_ context.Context, employee Employee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.employees[employee.ID]; !ok {
		return ErrNotFound
	}
	f.employees[employee.ID] = employee
	return nil
}

func (f *fakeStore) DeleteEmployee(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.employees[id]; !ok {
		return ErrNotFound
	}
	delete(f.employees, id)
	return nil
}

func (f *fakeStore) ListEmployees(_ context.Context, createdBy string) ([]Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Employee
	for _, e := range f.employees {
		if createdBy == "" || e.CreatedBy == createdBy {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateVenue(_ context.Context, venue Venue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.venues[venue.Name]; ok {
		return ErrAlreadyExists
	}
	f.venues[venue.Name] = venue
	return nil
}

func (f *fakeStore) GetVenue(_ context.Context, name string) (Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.venues[name]
	if !ok {
		return Venue{}, ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) UpdateVenue(_ context.Context, venue Venue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.venues[venue.Name]; !ok {
		return ErrNotFound
	}
	f.venues[venue.Name] = venue
	return nil
}

func (f *fakeStore) DeleteVenue(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.venues[name]; !ok {
		return ErrNotFound
	}
	delete(f.venues, name)
	return nil
}

func (f *fakeStore) ListVenues(_ context.Context, owner string) ([]Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Venue
	for _, v := range f.venues {
		if owner == "" || v.Owner == owner {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) CreateAdmin(_ context.Context, admin Admin, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.admins[admin.Username]; ok {
		return ErrAlreadyExists
	}
	f.admins[admin.Username] = AdminCredentials{Admin: admin, PasswordHash: passwordHash}
	return nil
}

func (f *fakeStore) GetAdminCredentials(_ context.Context, username string) (AdminCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.admins[username]
	if !ok {
		return AdminCredentials{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) UpdateAdmin(_ context.Context, admin Admin, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.admins[admin.Username]
	if !ok {
		return ErrNotFound
	}
	c.Admin = admin
	if passwordHash != "" {
		c.PasswordHash = passwordHash
	}
	f.admins[admin.Username] = c
	return nil
}

func (f *fakeStore) DeleteAdmin(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.admins[username]; !ok {
		return ErrNotFound
	}
	delete(f.admins, username)
	return nil
}

func (f *fakeStore) ListAdmins(_ context.Context) ([]Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Admin
	for _, c := range f.admins {
		out = append(out, c.Admin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) CountAdmins(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.admins), nil
}

func (f *fakeStore) CreateSession(_ context.Context, session Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.Token] = session
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, token string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, session Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.Token]; !ok {
		return ErrNotFound
	}
	f.sessions[session.Token] = session
	return nil
}

func (f *fakeStore) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteExpired = append(f.deleteExpired, reference)
	for token, s := range f.sessions {
		if !s.ExpiresAt.After(reference) {
			delete(f.sessions, token)
		}
	}
	return nil
}

func (f *fakeStore) ListEvents(_ context.Context, filter EventFilter) ([]ReportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []ReportRow
	for _, e := range f.events {
		if filter.From != nil && e.Day().Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Day().After(*filter.To) {
			continue
		}
		if filter.Venues != nil && !slices.Contains(filter.Venues, e.Venue) {
			continue
		}
		if !strings.Contains(strings.ToLower(e.Venue), strings.ToLower(filter.Venue)) ||
			!strings.Contains(strings.ToLower(e.EmployeeName), strings.ToLower(filter.EmployeeName)) ||
			!strings.Contains(strings.ToLower(e.CostCenter), strings.ToLower(filter.CostCenter)) ||
			!strings.Contains(strings.ToLower(e.WorkOrder), strings.ToLower(filter.WorkOrder)) {
			continue
		}
		rows = append(rows, ReportRow{Event: e, Document: f.employees[e.EmployeeID].Document})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Event.OccurredAt.After(rows[j].Event.OccurredAt) })
	return rows, nil
}

// signatureExtractor returns a fixed signature for every photo keyed by its content.
type signatureExtractor map[string]facematch.Signature

func (s signatureExtractor) Extract(_ context.Context, photo []byte) (facematch.Signature, error) {
	if len(photo) == 0 {
		return nil, facematch.ErrEmptyPhoto
	}
	switch string(photo) {
	case "nobody":
		return nil, facematch.ErrNoFaceDetected
	case "crowd":
		return nil, facematch.ErrMultipleFaces
	case "broken":
		return nil, errStub
	}
	sig, ok := s[string(photo)]
	if !ok {
		return signatureAt(9), nil
	}
	return sig, nil
}

// signatureAt returns a signature whose first component is v and the rest zero.
func signatureAt(v float64) facematch.Signature {
	sig := make(facematch.Signature, facematch.SignatureLength)
	sig[0] = v
	return sig
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

var (
	superAdmin = Principal{Username: "root", IsSuperAdmin: true}
	owner      = Principal{Username: "ana"}
	stranger   = Principal{Username: "bruno"}
)
