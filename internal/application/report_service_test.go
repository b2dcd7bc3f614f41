package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportHarness(t *testing.T) (*ReportService, time.Time) {
	t.Helper()

	now := time.Date(2024, 1, 20, 12, 0, 0, 0, saoPaulo)
	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.CreateVenue(ctx, Venue{Name: "Central", Owner: "ana"}))
	require.NoError(t, store.CreateVenue(ctx, Venue{Name: "South", Owner: "bruno"}))
	require.NoError(t, store.CreateEmployee(ctx, Employee{ID: "E1", Name: "Ana Lima", Document: "111", CreatedBy: "ana"}))
	require.NoError(t, store.CreateEmployee(ctx, Employee{ID: "E2", Name: "Bia Costa", Document: "222", CreatedBy: "bruno"}))

	events := []MealEvent{
		{ID: "1", Venue: "Central", EmployeeID: "E1", EmployeeName: "Ana Lima", CostCenter: "CC-10", WorkOrder: "WO-1", OccurredAt: time.Date(2024, 1, 18, 11, 0, 0, 0, saoPaulo)},
		{ID: "2", Venue: "Central", EmployeeID: "E1", EmployeeName: "Ana Lima", CostCenter: "CC-10", WorkOrder: "WO-1", OccurredAt: time.Date(2024, 1, 19, 11, 30, 0, 0, saoPaulo)},
		{ID: "3", Venue: "South", EmployeeID: "E2", EmployeeName: "Bia Costa", CostCenter: "CC-20", WorkOrder: "WO-2", OccurredAt: time.Date(2024, 1, 19, 12, 0, 0, 0, saoPaulo)},
		{ID: "4", Venue: "Central", EmployeeID: "E2", EmployeeName: "Bia Costa", CostCenter: "CC-20", WorkOrder: "WO-2", OccurredAt: time.Date(2024, 1, 20, 7, 15, 0, 0, saoPaulo)},
	}
	for _, e := range events {
		require.NoError(t, store.InsertEvent(ctx, e))
	}

	return NewReportService(store, store, fixedClock(now)), now
}

func withReportAccess(p Principal, until time.Time) Principal {
	p.ReportAccessUntil = &until
	return p
}

func eventIDs(rows []ReportRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Event.ID)
	}
	return ids
}

func TestReportService_RequiresReauthentication(t *testing.T) {
	t.Parallel()

	svc, now := newReportHarness(t)
	ctx := context.Background()

	_, err := svc.ListMeals(ctx, ReportParams{Principal: superAdmin})
	assert.ErrorIs(t, err, ErrReauthenticationRequired)

	_, err = svc.ListMeals(ctx, ReportParams{Principal: withReportAccess(superAdmin, now)})
	assert.ErrorIs(t, err, ErrReauthenticationRequired, "grant ends at its instant")

	_, err = svc.ListMeals(ctx, ReportParams{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.ListMeals(ctx, ReportParams{Principal: withReportAccess(superAdmin, now.Add(time.Minute))})
	assert.NoError(t, err)
}

func TestReportService_ListMeals(t *testing.T) {
	t.Parallel()

	svc, now := newReportHarness(t)
	until := now.Add(5 * time.Minute)
	root := withReportAccess(superAdmin, until)
	ana := withReportAccess(owner, until)

	tests := []struct {
		name      string
		principal Principal
		filter    EventFilter
		want      []string
	}{
		{name: "all newest first", principal: root, want: []string{"4", "3", "2", "1"}},
		{name: "tenant sees own venues only", principal: ana, want: []string{"4", "2", "1"}},
		{name: "date range inclusive", principal: root, filter: EventFilter{From: datePtr(2024, 1, 19), To: datePtr(2024, 1, 19)}, want: []string{"3", "2"}},
		{name: "employee name substring case insensitive", principal: root, filter: EventFilter{EmployeeName: "bia"}, want: []string{"4", "3"}},
		{name: "cost center", principal: ana, filter: EventFilter{CostCenter: "CC-20"}, want: []string{"4"}},
		{name: "work order", principal: root, filter: EventFilter{WorkOrder: "WO-1"}, want: []string{"2", "1"}},
		{name: "venue", principal: root, filter: EventFilter{Venue: "south"}, want: []string{"3"}},
		{name: "tenant cannot widen venues", principal: ana, filter: EventFilter{Venues: []string{"South"}}, want: []string{"4", "2", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rows, err := svc.ListMeals(context.Background(), ReportParams{Principal: tt.principal, Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.want, eventIDs(rows))
		})
	}

	rows, err := svc.ListMeals(context.Background(), ReportParams{Principal: withReportAccess(Principal{Username: "nobody"}, until)})
	require.NoError(t, err)
	assert.Empty(t, rows, "admins without venues see nothing")

	_, err = svc.ListMeals(context.Background(), ReportParams{Principal: root, Filter: EventFilter{From: datePtr(2024, 1, 20), To: datePtr(2024, 1, 19)}})
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestReportService_ExportCSV(t *testing.T) {
	t.Parallel()

	svc, now := newReportHarness(t)
	var buf bytes.Buffer
	err := svc.ExportCSV(context.Background(), ReportParams{
		Principal: withReportAccess(owner, now.Add(time.Minute)),
		Filter:    EventFilter{EmployeeName: "ana"},
	}, &buf)
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ReportCSVHeader, records[0])
	assert.Equal(t, []string{"2024-01-19", "11:30:00", "Central", "E1", "Ana Lima", "111", "CC-10", "WO-1"}, records[1])

	buf.Reset()
	err = svc.ExportCSV(context.Background(), ReportParams{Principal: owner}, &buf)
	assert.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.Zero(t, buf.Len())
}
