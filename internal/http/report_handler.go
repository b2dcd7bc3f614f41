package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/example/meal-access/internal/application"
)

type reportService interface {
	ListMeals(ctx context.Context, params application.ReportParams) ([]application.ReportRow, error)
	ExportCSV(ctx context.Context, params application.ReportParams, w io.Writer) error
}

// ReportHandler lists recorded meals. Query parameters: from, to (YYYY-MM-DD),
// venue, employee_name, cost_center, work_order.
type ReportHandler struct {
	service   reportService
	responder responder
	logger    *slog.Logger
}

func NewReportHandler(service reportService, logger *slog.Logger) *ReportHandler {
	base := defaultLogger(logger)
	return &ReportHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReportHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReportHandler", operation, attrs...)
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal", principal.Username)

	filter, err := filterFromQuery(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	rows, err := h.service.ListMeals(r.Context(), application.ReportParams{Principal: principal, Filter: filter})
	if err != nil {
		logger.WarnContext(r.Context(), "meal report failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	events := make([]eventDTO, 0, len(rows))
	for _, row := range rows {
		dto := toEventDTO(row.Event)
		dto.Document = row.Document
		events = append(events, dto)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reportResponse{Meals: events, Count: len(events)})
}

func (h *ReportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ExportCSV", "principal", principal.Username)

	filter, err := filterFromQuery(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportCSV(r.Context(), application.ReportParams{Principal: principal, Filter: filter}, &buf); err != nil {
		logger.WarnContext(r.Context(), "meal export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meals.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.ErrorContext(r.Context(), "failed to write csv", "error", err)
	}
}

func filterFromQuery(r *http.Request) (application.EventFilter, error) {
	query := r.URL.Query()
	from, err := parseDate("from", query.Get("from"))
	if err != nil {
		return application.EventFilter{}, err
	}
	to, err := parseDate("to", query.Get("to"))
	if err != nil {
		return application.EventFilter{}, err
	}
	return application.EventFilter{
		From:         from,
		To:           to,
		Venue:        query.Get("venue"),
		EmployeeName: query.Get("employee_name"),
		CostCenter:   query.Get("cost_center"),
		WorkOrder:    query.Get("work_order"),
	}, nil
}

type reportResponse struct {
	Meals []eventDTO `json:"meals"`
	Count int        `json:"count"`
}
