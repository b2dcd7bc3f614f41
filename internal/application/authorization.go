package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/meal-access/internal/lock"
)

// AuthorizationEngineDeps groups the collaborators of the authorization engine.
type AuthorizationEngineDeps struct {
	Resolver    *IdentityResolver
	Venues      VenueCatalog
	Ledger      MealLedger
	Locker      lock.Locker
	IDGenerator func() string
	Now         func() time.Time
	Location    *time.Location
	Logger      *slog.Logger
}

// AuthorizationEngine decides whether a meal may be served and records it.
//
// Gates run in order and short-circuit: venue permission, venue validity
// window, daily quota. The quota count and the event insert happen while
// holding a per-employee lock, so concurrent attempts for the same employee
// cannot both consume the last slot.
type AuthorizationEngine struct {
	resolver    *IdentityResolver
	venues      VenueCatalog
	ledger      MealLedger
	locker      lock.Locker
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewAuthorizationEngine wires the engine. Missing clock, location, locker and
// event ID generator get process defaults.
func NewAuthorizationEngine(deps AuthorizationEngineDeps) *AuthorizationEngine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyed()
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = uuid.NewString
	}
	return &AuthorizationEngine{
		resolver:    deps.Resolver,
		venues:      deps.Venues,
		ledger:      deps.Ledger,
		locker:      deps.Locker,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		location:    deps.Location,
		logger:      defaultLogger(deps.Logger),
	}
}

func (e *AuthorizationEngine) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, e.logger, "AuthorizationEngine", operation, attrs...)
}

// Attempt runs Authorize and folds the outcome into an operator-facing result.
func (e *AuthorizationEngine) Attempt(ctx context.Context, params AuthorizeParams) (AuthorizationResult, error) {
	auth, err := e.Authorize(ctx, params)
	return ResultOf(auth, err), err
}

// Authorize resolves the employee, applies the gates and commits one meal
// event on success. It is not idempotent: every success consumes a slot.
func (e *AuthorizationEngine) Authorize(ctx context.Context, params AuthorizeParams) (auth Authorization, err error) {
	if e == nil {
		err = fmt.Errorf("AuthorizationEngine is nil")
		return
	}
	if e.resolver == nil || e.venues == nil || e.ledger == nil {
		err = fmt.Errorf("authorization engine not configured")
		return
	}

	venueName := strings.TrimSpace(params.Venue)
	method := "document"
	if len(params.Photo) > 0 {
		method = "photo"
	}

	logger := e.loggerWith(ctx, "Authorize",
		"principal", params.Principal.Username,
		"venue", venueName,
		"method", method,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "meal not authorized", err)
			return
		}
		logger.With(
			"employee_id", auth.Employee.ID,
			"event_id", auth.Event.ID,
			"used", auth.Used,
			"quota", auth.Quota,
		).InfoContext(ctx, "meal authorized")
	}()

	if vErr := validateAuthorizeParams(venueName, params); vErr.HasErrors() {
		err = vErr
		return
	}

	var venue Venue
	venue, err = e.venues.FindVenue(ctx, venueName)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = ErrVenueNotFound
		}
		return
	}
	if !params.Principal.owns(venue.Owner) {
		err = ErrUnauthorized
		return
	}

	var employee Employee
	if method == "photo" {
		employee, err = e.resolver.ResolveByPhoto(ctx, params.Photo, venue.Name)
	} else {
		employee, err = e.resolver.ResolveByDocument(ctx, params.Document)
	}
	if err != nil {
		return
	}

	return e.commit(ctx, employee, venue)
}

func (e *AuthorizationEngine) commit(ctx context.Context, employee Employee, venue Venue) (Authorization, error) {
	if !employee.Permits(venue.Name) {
		return Authorization{}, e.denied(ReasonNotPermitted, employee, venue)
	}

	now := e.now().In(e.location)
	if !venue.AcceptsOn(now) {
		return Authorization{}, e.denied(ReasonVenueExpiredOrUnconfigured, employee, venue)
	}

	unlock, err := e.locker.Lock(ctx, "employee:"+employee.ID)
	if err != nil {
		return Authorization{}, fmt.Errorf("acquire quota lock: %w", err)
	}
	defer unlock()

	used, err := e.ledger.CountEvents(ctx, employee.ID, civilDate(now))
	if err != nil {
		return Authorization{}, fmt.Errorf("count meal events: %w", err)
	}
	quota := employee.DailyQuota()
	if used >= quota {
		return Authorization{}, e.denied(ReasonQuotaExceeded, employee, venue)
	}

	event := MealEvent{
		ID:           e.idGenerator(),
		Venue:        venue.Name,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		CostCenter:   employee.CostCenter,
		WorkOrder:    employee.WorkOrder,
		OccurredAt:   now,
	}
	if err := e.ledger.InsertEvent(ctx, event); err != nil {
		return Authorization{}, fmt.Errorf("insert meal event: %w", err)
	}

	return Authorization{Employee: employee, Event: event, Quota: quota, Used: used + 1}, nil
}

func (e *AuthorizationEngine) denied(reason DenialReason, employee Employee, venue Venue) error {
	return &AccessDeniedError{
		Reason:       reason,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		Venue:        venue.Name,
		Quota:        employee.DailyQuota(),
	}
}

func validateAuthorizeParams(venue string, params AuthorizeParams) *ValidationError {
	vErr := &ValidationError{}
	if venue == "" {
		vErr.add("venue", "venue is required")
	}
	hasDocument := strings.TrimSpace(params.Document) != ""
	hasPhoto := len(params.Photo) > 0
	switch {
	case hasDocument && hasPhoto:
		vErr.add("identity", "provide either a document or a photo, not both")
	case !hasDocument && !hasPhoto:
		vErr.add("identity", "document or photo is required")
	}
	return vErr
}
