package application

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ReportParams selects meal events for a report.
type ReportParams struct {
	Principal Principal
	Filter    EventFilter
}

// ReportService lists recorded meals. Access requires a recent password
// re-check (see AuthService.Reauthenticate) and restaurant administrators
// only see events of the venues they own.
type ReportService struct {
	events EventQuery
	venues VenueRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewReportService wires dependencies for the report service.
func NewReportService(events EventQuery, venues VenueRepository, now func() time.Time) *ReportService {
	return NewReportServiceWithLogger(events, venues, now, nil)
}

// NewReportServiceWithLogger wires dependencies for the report service with a specific logger.
func NewReportServiceWithLogger(events EventQuery, venues VenueRepository, now func() time.Time, logger *slog.Logger) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{events: events, venues: venues, now: now, logger: defaultLogger(logger)}
}

// ListMeals returns matching meal events, newest first.
func (s *ReportService) ListMeals(ctx context.Context, params ReportParams) (rows []ReportRow, err error) {
	if s == nil {
		err = fmt.Errorf("ReportService is nil")
		return
	}
	if s.events == nil || s.venues == nil {
		err = fmt.Errorf("report service not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ReportService", "ListMeals", "principal", params.Principal.Username)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to list meals", err)
			return
		}
		logger.InfoContext(ctx, "meals listed", "rows", len(rows))
	}()

	if params.Principal.Username == "" {
		err = ErrUnauthorized
		return
	}
	if !params.Principal.canReadReports(s.now()) {
		err = ErrReauthenticationRequired
		return
	}

	filter := normalizeEventFilter(params.Filter)
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		err = fieldError("to", "end date must not be before start date")
		return
	}

	if !params.Principal.IsSuperAdmin {
		var owned []Venue
		if owned, err = s.venues.ListVenues(ctx, params.Principal.Username); err != nil {
			err = mapRepoError(err)
			return
		}
		filter.Venues = make([]string, 0, len(owned))
		for _, venue := range owned {
			filter.Venues = append(filter.Venues, venue.Name)
		}
	}

	rows, err = s.events.ListEvents(ctx, filter)
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// ExportCSV writes the rows selected by params as CSV with a header line.
func (s *ReportService) ExportCSV(ctx context.Context, params ReportParams, w io.Writer) error {
	rows, err := s.ListMeals(ctx, params)
	if err != nil {
		return err
	}
	return WriteReportCSV(w, rows)
}

// ReportCSVHeader lists the exported columns in order.
var ReportCSVHeader = []string{"date", "time", "venue", "employee_id", "employee_name", "document", "cost_center", "work_order"}

// WriteReportCSV encodes rows as CSV.
func WriteReportCSV(w io.Writer, rows []ReportRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ReportCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Event.OccurredAt.Format(DateLayout),
			row.Event.OccurredAt.Format("15:04:05"),
			row.Event.Venue,
			row.Event.EmployeeID,
			row.Event.EmployeeName,
			row.Document,
			row.Event.CostCenter,
			row.Event.WorkOrder,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.Event.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func normalizeEventFilter(filter EventFilter) EventFilter {
	out := EventFilter{
		Venue:        strings.TrimSpace(filter.Venue),
		EmployeeName: strings.TrimSpace(filter.EmployeeName),
		CostCenter:   strings.TrimSpace(filter.CostCenter),
		WorkOrder:    strings.TrimSpace(filter.WorkOrder),
		Venues:       cloneStrings(filter.Venues),
	}
	if filter.From != nil {
		d := civilDate(*filter.From)
		out.From = &d
	}
	if filter.To != nil {
		d := civilDate(*filter.To)
		out.To = &d
	}
	return out
}
