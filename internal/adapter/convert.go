package adapter

import (
	"time"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/facematch"
	"github.com/example/meal-access/internal/persistence"
)

func toApplicationEmployee(e persistence.Employee) application.Employee {
	var signature facematch.Signature
	if len(e.FaceSignature) > 0 {
		signature = facematch.Signature(append([]float64(nil), e.FaceSignature...))
	}
	return application.Employee{
		ID:              e.ID,
		Name:            e.Name,
		Document:        e.Document,
		CostCenter:      e.CostCenter,
		WorkOrder:       e.WorkOrder,
		AllowsTwoMeals:  e.AllowsTwoMeals,
		PermittedVenues: append([]string(nil), e.PermittedVenues...),
		FaceSignature:   signature,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toPersistenceEmployee(e application.Employee) persistence.Employee {
	var signature []float64
	if len(e.FaceSignature) > 0 {
		signature = append([]float64(nil), e.FaceSignature...)
	}
	return persistence.Employee{
		ID:              e.ID,
		Name:            e.Name,
		Document:        e.Document,
		CostCenter:      e.CostCenter,
		WorkOrder:       e.WorkOrder,
		AllowsTwoMeals:  e.AllowsTwoMeals,
		PermittedVenues: append([]string{}, e.PermittedVenues...),
		FaceSignature:   signature,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toApplicationVenue(v persistence.Venue) application.Venue {
	return application.Venue{
		Name:       v.Name,
		Owner:      v.Owner,
		ValidFrom:  cloneTime(v.ValidFrom),
		ValidUntil: cloneTime(v.ValidUntil),
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func toPersistenceVenue(v application.Venue) persistence.Venue {
	return persistence.Venue{
		Name:       v.Name,
		Owner:      v.Owner,
		ValidFrom:  cloneTime(v.ValidFrom),
		ValidUntil: cloneTime(v.ValidUntil),
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func toApplicationAdmin(a persistence.Admin) application.Admin {
	return application.Admin{
		Username:     a.Username,
		Name:         a.Name,
		Email:        a.Email,
		IsSuperAdmin: a.IsSuperAdmin,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toPersistenceAdmin(a application.Admin, passwordHash string) persistence.Admin {
	return persistence.Admin{
		Username:     a.Username,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: passwordHash,
		IsSuperAdmin: a.IsSuperAdmin,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toApplicationSession(s persistence.Session) application.Session {
	return application.Session{
		ID:                s.ID,
		Username:          s.Username,
		Token:             s.Token,
		ExpiresAt:         s.ExpiresAt,
		ReportAccessUntil: cloneTime(s.ReportAccessUntil),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		RevokedAt:         cloneTime(s.RevokedAt),
	}
}

func toPersistenceSession(s application.Session) persistence.Session {
	return persistence.Session{
		ID:                s.ID,
		Username:          s.Username,
		Token:             s.Token,
		ExpiresAt:         s.ExpiresAt,
		ReportAccessUntil: cloneTime(s.ReportAccessUntil),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		RevokedAt:         cloneTime(s.RevokedAt),
	}
}

func toPersistenceEvent(e application.MealEvent) persistence.MealEvent {
	return persistence.MealEvent{
		ID:           e.ID,
		Venue:        e.Venue,
		EmployeeID:   e.EmployeeID,
		EmployeeName: e.EmployeeName,
		CostCenter:   e.CostCenter,
		WorkOrder:    e.WorkOrder,
		Day:          e.OccurredAt.Format(application.DateLayout),
		OccurredAt:   e.OccurredAt,
	}
}

// toApplicationEvent re-reads the stored wall-clock time in loc.
func toApplicationEvent(e persistence.MealEvent, loc *time.Location) application.MealEvent {
	t := e.OccurredAt
	return application.MealEvent{
		ID:           e.ID,
		Venue:        e.Venue,
		EmployeeID:   e.EmployeeID,
		EmployeeName: e.EmployeeName,
		CostCenter:   e.CostCenter,
		WorkOrder:    e.WorkOrder,
		OccurredAt:   time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc),
	}
}

func toPersistenceFilter(f application.EventFilter) persistence.EventFilter {
	filter := persistence.EventFilter{
		Venue:        f.Venue,
		EmployeeName: f.EmployeeName,
		CostCenter:   f.CostCenter,
		WorkOrder:    f.WorkOrder,
	}
	if f.From != nil {
		filter.From = f.From.Format(application.DateLayout)
	}
	if f.To != nil {
		filter.To = f.To.Format(application.DateLayout)
	}
	if f.Venues != nil {
		filter.Venues = append([]string{}, f.Venues...)
	}
	return filter
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
