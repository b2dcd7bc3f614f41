package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/meal-access/internal/persistence"
)

// EventRepository implements persistence.EventRepository over meal_events.
type EventRepository struct {
	repository
}

// InsertEvent appends a meal event in a single statement.
func (r *EventRepository) InsertEvent(ctx context.Context, event persistence.MealEvent) error {
	if event.ID == "" || event.EmployeeID == "" || event.Day == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.exec(ctx, `
		INSERT INTO meal_events (id, venue, employee_id, employee_name, cost_center, work_order, day, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Venue,
		event.EmployeeID,
		event.EmployeeName,
		event.CostCenter,
		event.WorkOrder,
		event.Day,
		event.OccurredAt.Format(civilTimestampLayout),
	)
	return err
}

// CountEvents counts events for employeeID on day (YYYY-MM-DD).
func (r *EventRepository) CountEvents(ctx context.Context, employeeID, day string) (int, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meal_events WHERE employee_id = ? AND day = ?`, employeeID, day,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count meal events: %w", r.mapper.MapError(err))
	}
	return count, nil
}

// ListEvents returns matching events newest first, joined with the
// employee's current document.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.EventRow, error) {
	if filter.Venues != nil && len(filter.Venues) == 0 {
		return []persistence.EventRow{}, nil
	}

	query, args := buildEventQuery(filter)
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	result := make([]persistence.EventRow, 0)
	for rows.Next() {
		var (
			row        persistence.EventRow
			occurredAt string
		)
		if err := rows.Scan(
			&row.Event.ID,
			&row.Event.Venue,
			&row.Event.EmployeeID,
			&row.Event.EmployeeName,
			&row.Event.CostCenter,
			&row.Event.WorkOrder,
			&row.Event.Day,
			&occurredAt,
			&row.Document,
		); err != nil {
			return nil, err
		}
		if row.Event.OccurredAt, err = time.Parse(civilTimestampLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse occurred_at of %s: %w", row.Event.ID, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func buildEventQuery(filter persistence.EventFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.From != "" {
		clauses = append(clauses, "m.day >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		clauses = append(clauses, "m.day <= ?")
		args = append(args, filter.To)
	}
	for _, text := range []struct{ column, needle string }{
		{"m.venue", filter.Venue},
		{"m.employee_name", filter.EmployeeName},
		{"m.cost_center", filter.CostCenter},
		{"m.work_order", filter.WorkOrder},
	} {
		if text.needle != "" {
			clauses = append(clauses, "instr(lower("+text.column+"), lower(?)) > 0")
			args = append(args, text.needle)
		}
	}
	if filter.Venues != nil {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Venues)), ", ")
		clauses = append(clauses, "m.venue IN ("+placeholders+")")
		for _, venue := range filter.Venues {
			args = append(args, venue)
		}
	}

	var b strings.Builder
	b.WriteString(`
		SELECT m.id, m.venue, m.employee_id, m.employee_name, m.cost_center, m.work_order,
		       m.day, m.occurred_at, COALESCE(e.document, '')
		FROM meal_events m
		LEFT JOIN employees e ON e.id = m.employee_id`)
	if len(clauses) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}
	b.WriteString("\n\t\tORDER BY m.occurred_at DESC, m.rowid DESC")
	return b.String(), args
}
