package persistence_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/example/meal-access/internal/persistence"
	"github.com/example/meal-access/internal/persistence/memory"
	"github.com/example/meal-access/internal/persistence/sqlite"
)

var reference = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

// forEachStore runs fn against a fresh in-memory store and a fresh migrated
// SQLite store so that both implementations honour the same contract.
func forEachStore(t *testing.T, fn func(t *testing.T, store persistence.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, memory.New())
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		store, err := sqlite.Open(ctx, sqlite.Config{DSN: filepath.Join(t.TempDir(), "meal-access.db")}, nil)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		fn(t, store)
	})
}

func date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func newEmployee(id, document string, venues ...string) persistence.Employee {
	return persistence.Employee{
		ID:              id,
		Name:            "Employee " + id,
		Document:        document,
		CostCenter:      "CC-" + id,
		WorkOrder:       "WO-" + id,
		PermittedVenues: venues,
		CreatedBy:       "ops",
		CreatedAt:       reference,
		UpdatedAt:       reference,
	}
}

func TestAdminRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		admin := persistence.Admin{
			Username:     "root",
			Name:         "Root",
			Email:        "root@example.com",
			PasswordHash: "hash-1",
			IsSuperAdmin: true,
			CreatedAt:    reference,
			UpdatedAt:    reference,
		}
		if err := store.CreateAdmin(ctx, admin); err != nil {
			t.Fatalf("CreateAdmin failed: %v", err)
		}
		if err := store.CreateAdmin(ctx, admin); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		admin.Name = "Root Updated"
		admin.PasswordHash = ""
		admin.UpdatedAt = reference.Add(time.Hour)
		if err := store.UpdateAdmin(ctx, admin); err != nil {
			t.Fatalf("UpdateAdmin failed: %v", err)
		}
		fetched, err := store.GetAdmin(ctx, "root")
		if err != nil {
			t.Fatalf("GetAdmin failed: %v", err)
		}
		if fetched.Name != "Root Updated" || fetched.PasswordHash != "hash-1" || !fetched.IsSuperAdmin {
			t.Fatalf("unexpected admin: %#v", fetched)
		}
		if !fetched.CreatedAt.Equal(reference) {
			t.Fatalf("expected created_at to survive update, got %v", fetched.CreatedAt)
		}

		count, err := store.CountAdmins(ctx)
		if err != nil || count != 1 {
			t.Fatalf("CountAdmins = %d, %v", count, err)
		}

		if err := store.DeleteAdmin(ctx, "root"); err != nil {
			t.Fatalf("DeleteAdmin failed: %v", err)
		}
		if _, err := store.GetAdmin(ctx, "root"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteAdmin(ctx, "root"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestEmployeeRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()

		enrolled := newEmployee("E2", "22222222222", "Central", "Annex")
		enrolled.FaceSignature = []float64{0.1, 0.2, 0.3}
		plain := newEmployee("E1", "11111111111", "Central")
		other := newEmployee("E3", "33333333333", "Annex")
		other.FaceSignature = []float64{0.4}
		other.CreatedBy = "someone-else"

		for _, employee := range []persistence.Employee{enrolled, plain, other} {
			if err := store.CreateEmployee(ctx, employee); err != nil {
				t.Fatalf("CreateEmployee(%s) failed: %v", employee.ID, err)
			}
		}

		dupDocument := newEmployee("E9", "11111111111")
		if err := store.CreateEmployee(ctx, dupDocument); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for document, got %v", err)
		}
		if err := store.CreateEmployee(ctx, newEmployee("E1", "99999999999")); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for id, got %v", err)
		}

		byDoc, err := store.GetEmployeeByDocument(ctx, "22222222222")
		if err != nil {
			t.Fatalf("GetEmployeeByDocument failed: %v", err)
		}
		if byDoc.ID != "E2" || !slices.Equal(byDoc.FaceSignature, enrolled.FaceSignature) ||
			!slices.Equal(byDoc.PermittedVenues, []string{"Central", "Annex"}) {
			t.Fatalf("unexpected employee: %#v", byDoc)
		}

		candidates, err := store.ListEmployeesWithSignatureForVenue(ctx, "Central")
		if err != nil {
			t.Fatalf("ListEmployeesWithSignatureForVenue failed: %v", err)
		}
		if len(candidates) != 1 || candidates[0].ID != "E2" {
			t.Fatalf("unexpected candidates for Central: %#v", candidates)
		}
		candidates, err = store.ListEmployeesWithSignatureForVenue(ctx, "Annex")
		if err != nil {
			t.Fatalf("ListEmployeesWithSignatureForVenue failed: %v", err)
		}
		if len(candidates) != 2 || candidates[0].ID != "E2" || candidates[1].ID != "E3" {
			t.Fatalf("expected candidates ordered by id, got %#v", candidates)
		}

		mine, err := store.ListEmployees(ctx, "ops")
		if err != nil {
			t.Fatalf("ListEmployees failed: %v", err)
		}
		if len(mine) != 2 || mine[0].ID != "E1" || mine[1].ID != "E2" {
			t.Fatalf("unexpected tenant listing: %#v", mine)
		}
		all, err := store.ListEmployees(ctx, "")
		if err != nil || len(all) != 3 {
			t.Fatalf("ListEmployees(all) = %d, %v", len(all), err)
		}

		plain.FaceSignature = []float64{0.9, 0.8}
		plain.AllowsTwoMeals = true
		plain.UpdatedAt = reference.Add(time.Minute)
		if err := store.UpdateEmployee(ctx, plain); err != nil {
			t.Fatalf("UpdateEmployee failed: %v", err)
		}
		updated, err := store.GetEmployee(ctx, "E1")
		if err != nil {
			t.Fatalf("GetEmployee failed: %v", err)
		}
		if !updated.AllowsTwoMeals || len(updated.FaceSignature) != 2 {
			t.Fatalf("update not persisted: %#v", updated)
		}

		plain.FaceSignature = nil
		if err := store.UpdateEmployee(ctx, plain); err != nil {
			t.Fatalf("UpdateEmployee(clear face) failed: %v", err)
		}
		cleared, _ := store.GetEmployee(ctx, "E1")
		if len(cleared.FaceSignature) != 0 {
			t.Fatalf("expected signature cleared, got %v", cleared.FaceSignature)
		}

		moved := newEmployee("E1", "22222222222", "Central")
		if err := store.UpdateEmployee(ctx, moved); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate when taking another document, got %v", err)
		}

		if err := store.DeleteEmployee(ctx, "E1"); err != nil {
			t.Fatalf("DeleteEmployee failed: %v", err)
		}
		if _, err := store.GetEmployee(ctx, "E1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.UpdateEmployee(ctx, plain); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update of deleted employee, got %v", err)
		}
	})
}

func TestVenueRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()

		central := persistence.Venue{Name: "Central", Owner: "ops", ValidFrom: date(2024, 1, 1), ValidUntil: date(2024, 12, 31), CreatedAt: reference, UpdatedAt: reference}
		annex := persistence.Venue{Name: "Annex", Owner: "other", CreatedAt: reference, UpdatedAt: reference}
		for _, venue := range []persistence.Venue{central, annex} {
			if err := store.CreateVenue(ctx, venue); err != nil {
				t.Fatalf("CreateVenue(%s) failed: %v", venue.Name, err)
			}
		}
		if err := store.CreateVenue(ctx, central); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		fetched, err := store.GetVenue(ctx, "Central")
		if err != nil {
			t.Fatalf("GetVenue failed: %v", err)
		}
		if fetched.ValidFrom == nil || !fetched.ValidFrom.Equal(*central.ValidFrom) || !fetched.ValidUntil.Equal(*central.ValidUntil) {
			t.Fatalf("unexpected window: %#v", fetched)
		}

		unconfigured, err := store.GetVenue(ctx, "Annex")
		if err != nil {
			t.Fatalf("GetVenue failed: %v", err)
		}
		if unconfigured.ValidFrom != nil || unconfigured.ValidUntil != nil {
			t.Fatalf("expected unconfigured window, got %#v", unconfigured)
		}

		annex.ValidFrom = date(2024, 2, 1)
		annex.ValidUntil = date(2024, 2, 29)
		if err := store.UpdateVenue(ctx, annex); err != nil {
			t.Fatalf("UpdateVenue failed: %v", err)
		}
		owned, err := store.ListVenues(ctx, "other")
		if err != nil {
			t.Fatalf("ListVenues failed: %v", err)
		}
		if len(owned) != 1 || owned[0].Name != "Annex" || owned[0].ValidUntil == nil {
			t.Fatalf("unexpected owned venues: %#v", owned)
		}
		all, err := store.ListVenues(ctx, "")
		if err != nil || len(all) != 2 || all[0].Name != "Annex" {
			t.Fatalf("expected venues ordered by name, got %#v, %v", all, err)
		}

		if err := store.DeleteVenue(ctx, "Annex"); err != nil {
			t.Fatalf("DeleteVenue failed: %v", err)
		}
		if _, err := store.GetVenue(ctx, "Annex"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.UpdateVenue(ctx, annex); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}
	})
}

func TestEventRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		if err := store.CreateEmployee(ctx, newEmployee("E1", "11111111111", "Central")); err != nil {
			t.Fatalf("CreateEmployee failed: %v", err)
		}

		events := []persistence.MealEvent{
			{ID: "ev-1", Venue: "Central", EmployeeID: "E1", EmployeeName: "Ana Souza", CostCenter: "CC-1", WorkOrder: "WO-7", Day: "2024-03-04", OccurredAt: time.Date(2024, 3, 4, 11, 30, 0, 0, time.UTC)},
			{ID: "ev-2", Venue: "Central", EmployeeID: "E1", EmployeeName: "Ana Souza", CostCenter: "CC-1", WorkOrder: "WO-7", Day: "2024-03-05", OccurredAt: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)},
			{ID: "ev-3", Venue: "Annex Kitchen", EmployeeID: "E2", EmployeeName: "Bruno Lima", CostCenter: "CC-2", WorkOrder: "WO-8", Day: "2024-03-05", OccurredAt: time.Date(2024, 3, 5, 19, 15, 0, 0, time.UTC)},
		}
		for _, event := range events {
			if err := store.InsertEvent(ctx, event); err != nil {
				t.Fatalf("InsertEvent(%s) failed: %v", event.ID, err)
			}
		}
		if err := store.InsertEvent(ctx, events[0]); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		count, err := store.CountEvents(ctx, "E1", "2024-03-05")
		if err != nil || count != 1 {
			t.Fatalf("CountEvents = %d, %v", count, err)
		}
		count, err = store.CountEvents(ctx, "E1", "2024-03-06")
		if err != nil || count != 0 {
			t.Fatalf("CountEvents(empty day) = %d, %v", count, err)
		}

		tests := map[string]struct {
			filter persistence.EventFilter
			want   []string
		}{
			"all newest first":      {filter: persistence.EventFilter{}, want: []string{"ev-3", "ev-2", "ev-1"}},
			"date range":            {filter: persistence.EventFilter{From: "2024-03-05", To: "2024-03-05"}, want: []string{"ev-3", "ev-2"}},
			"venue substring":       {filter: persistence.EventFilter{Venue: "annex"}, want: []string{"ev-3"}},
			"employee name":         {filter: persistence.EventFilter{EmployeeName: "SOUZA"}, want: []string{"ev-2", "ev-1"}},
			"cost center and order": {filter: persistence.EventFilter{CostCenter: "cc-2", WorkOrder: "8"}, want: []string{"ev-3"}},
			"venue set":             {filter: persistence.EventFilter{Venues: []string{"Central"}}, want: []string{"ev-2", "ev-1"}},
			"empty venue set":       {filter: persistence.EventFilter{Venues: []string{}}, want: []string{}},
		}
		for name, tt := range tests {
			rows, err := store.ListEvents(ctx, tt.filter)
			if err != nil {
				t.Fatalf("%s: ListEvents failed: %v", name, err)
			}
			got := make([]string, 0, len(rows))
			for _, row := range rows {
				got = append(got, row.Event.ID)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("%s: got %v, want %v", name, got, tt.want)
			}
		}

		rows, err := store.ListEvents(ctx, persistence.EventFilter{Venues: []string{"Central"}})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if rows[0].Document != "11111111111" {
			t.Fatalf("expected joined document, got %q", rows[0].Document)
		}
		if got := rows[1].Event.OccurredAt.Format("2006-01-02 15:04:05"); got != "2024-03-04 11:30:00" {
			t.Fatalf("unexpected civil timestamp %q", got)
		}
	})
}

func TestEventRepositorySameInstantNewestInsertFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
		// Identifiers sort opposite to insertion order.
		for _, id := range []string{"ev-c", "ev-b", "ev-a"} {
			event := persistence.MealEvent{ID: id, Venue: "Central", EmployeeID: "E-" + id, EmployeeName: "Employee " + id, Day: "2024-03-04", OccurredAt: at}
			if err := store.InsertEvent(ctx, event); err != nil {
				t.Fatalf("InsertEvent(%s) failed: %v", id, err)
			}
		}
		later := persistence.MealEvent{ID: "ev-0", Venue: "Central", EmployeeID: "E-0", EmployeeName: "Employee 0", Day: "2024-03-04", OccurredAt: at.Add(time.Second)}
		if err := store.InsertEvent(ctx, later); err != nil {
			t.Fatalf("InsertEvent(ev-0) failed: %v", err)
		}

		for i := 0; i < 3; i++ {
			rows, err := store.ListEvents(ctx, persistence.EventFilter{})
			if err != nil {
				t.Fatalf("ListEvents failed: %v", err)
			}
			got := make([]string, 0, len(rows))
			for _, row := range rows {
				got = append(got, row.Event.ID)
			}
			if want := []string{"ev-0", "ev-a", "ev-b", "ev-c"}; !slices.Equal(got, want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})
}

func TestSessionRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		if err := store.CreateAdmin(ctx, persistence.Admin{Username: "ops", Name: "Ops", PasswordHash: "hash", CreatedAt: reference, UpdatedAt: reference}); err != nil {
			t.Fatalf("CreateAdmin failed: %v", err)
		}

		live := persistence.Session{ID: "s-1", Username: "ops", Token: "token-live", ExpiresAt: reference.Add(time.Hour), CreatedAt: reference, UpdatedAt: reference}
		stale := persistence.Session{ID: "s-2", Username: "ops", Token: "token-stale", ExpiresAt: reference.Add(-time.Minute), CreatedAt: reference, UpdatedAt: reference}
		for _, session := range []persistence.Session{live, stale} {
			if err := store.CreateSession(ctx, session); err != nil {
				t.Fatalf("CreateSession(%s) failed: %v", session.ID, err)
			}
		}

		until := reference.Add(10 * time.Minute)
		live.ReportAccessUntil = &until
		live.UpdatedAt = reference.Add(time.Second)
		if err := store.UpdateSession(ctx, live); err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}
		fetched, err := store.GetSession(ctx, "token-live")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if fetched.ReportAccessUntil == nil || !fetched.ReportAccessUntil.Equal(until) || fetched.RevokedAt != nil {
			t.Fatalf("unexpected session: %#v", fetched)
		}

		if err := store.DeleteExpiredSessions(ctx, reference); err != nil {
			t.Fatalf("DeleteExpiredSessions failed: %v", err)
		}
		if _, err := store.GetSession(ctx, "token-stale"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected stale session removed, got %v", err)
		}
		if _, err := store.GetSession(ctx, "token-live"); err != nil {
			t.Fatalf("expected live session kept, got %v", err)
		}

		if err := store.DeleteAdmin(ctx, "ops"); err != nil {
			t.Fatalf("DeleteAdmin failed: %v", err)
		}
		if _, err := store.GetSession(ctx, "token-live"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected sessions removed with admin, got %v", err)
		}
	})
}
