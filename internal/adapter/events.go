package adapter

import (
	"context"
	"time"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/persistence"
)

// MealLedger adapts the event repository to application.MealLedger.
type MealLedger struct {
	repo persistence.EventRepository
}

var _ application.MealLedger = (*MealLedger)(nil)

// NewMealLedger wraps repo.
func NewMealLedger(repo persistence.EventRepository) *MealLedger {
	return &MealLedger{repo: repo}
}

// CountEvents counts events of employeeID on the calendar date of day.
func (a *MealLedger) CountEvents(ctx context.Context, employeeID string, day time.Time) (int, error) {
	return a.repo.CountEvents(ctx, employeeID, day.Format(application.DateLayout))
}

// InsertEvent stores event under the calendar date of its local timestamp.
func (a *MealLedger) InsertEvent(ctx context.Context, event application.MealEvent) error {
	return a.repo.InsertEvent(ctx, toPersistenceEvent(event))
}

// EventQuery adapts the event repository to application.EventQuery.
type EventQuery struct {
	repo     persistence.EventRepository
	location *time.Location
}

var _ application.EventQuery = (*EventQuery)(nil)

// NewEventQuery wraps repo; stored wall-clock times are read in location.
func NewEventQuery(repo persistence.EventRepository, location *time.Location) *EventQuery {
	if location == nil {
		location = time.Local
	}
	return &EventQuery{repo: repo, location: location}
}

func (a *EventQuery) ListEvents(ctx context.Context, filter application.EventFilter) ([]application.ReportRow, error) {
	records, err := a.repo.ListEvents(ctx, toPersistenceFilter(filter))
	if err != nil {
		return nil, err
	}
	rows := make([]application.ReportRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, application.ReportRow{
			Event:    toApplicationEvent(record.Event, a.location),
			Document: record.Document,
		})
	}
	return rows, nil
}
