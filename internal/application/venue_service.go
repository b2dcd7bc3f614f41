package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// VenueService manages restaurants and their validity windows.
type VenueService struct {
	venues VenueRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewVenueService wires dependencies for the venue service.
func NewVenueService(venues VenueRepository, now func() time.Time) *VenueService {
	return NewVenueServiceWithLogger(venues, now, nil)
}

// NewVenueServiceWithLogger wires dependencies for the venue service with a specific logger.
func NewVenueServiceWithLogger(venues VenueRepository, now func() time.Time, logger *slog.Logger) *VenueService {
	if now == nil {
		now = time.Now
	}
	return &VenueService{venues: venues, now: now, logger: defaultLogger(logger)}
}

func (s *VenueService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "VenueService", operation, attrs...)
}

func (s *VenueService) ready() error {
	if s == nil {
		return fmt.Errorf("VenueService is nil")
	}
	if s.venues == nil {
		return fmt.Errorf("venue repository not configured")
	}
	return nil
}

// CreateVenue stores a new venue owned by the principal. The window may be
// left unset, in which case the venue refuses every meal until configured.
func (s *VenueService) CreateVenue(ctx context.Context, params CreateVenueParams) (venue Venue, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input := normalizeVenueInput(params.Input)
	logger := s.loggerWith(ctx, "CreateVenue", "principal", params.Principal.Username, "venue", input.Name)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to create venue", err)
			return
		}
		logger.InfoContext(ctx, "venue created", "configured", venue.Configured())
	}()

	if params.Principal.Username == "" {
		err = ErrUnauthorized
		return
	}
	if vErr := validateVenueInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	venue = Venue{
		Name:       input.Name,
		Owner:      params.Principal.Username,
		ValidFrom:  input.ValidFrom,
		ValidUntil: input.ValidUntil,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.venues.CreateVenue(ctx, venue); err != nil {
		err = mapRepoError(err)
		venue = Venue{}
	}
	return
}

// UpdateVenue replaces the validity window of a venue the principal owns.
func (s *VenueService) UpdateVenue(ctx context.Context, params UpdateVenueParams) (venue Venue, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateVenue", "principal", params.Principal.Username, "venue", params.VenueName)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to update venue", err)
			return
		}
		logger.InfoContext(ctx, "venue updated", "configured", venue.Configured())
	}()

	venue, err = s.owned(ctx, params.Principal, params.VenueName)
	if err != nil {
		return
	}

	input := normalizeVenueInput(params.Input)
	input.Name = venue.Name
	if vErr := validateVenueInput(input); vErr.HasErrors() {
		err = vErr
		venue = Venue{}
		return
	}

	venue.ValidFrom = input.ValidFrom
	venue.ValidUntil = input.ValidUntil
	venue.UpdatedAt = s.now()
	if err = s.venues.UpdateVenue(ctx, venue); err != nil {
		err = mapRepoError(err)
		venue = Venue{}
	}
	return
}

// DeleteVenue removes a venue the principal owns. Employees keep the name in
// their permitted set; it simply stops matching any venue.
func (s *VenueService) DeleteVenue(ctx context.Context, principal Principal, name string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteVenue", "principal", principal.Username, "venue", name)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to delete venue", err)
			return
		}
		logger.InfoContext(ctx, "venue deleted")
	}()

	var venue Venue
	if venue, err = s.owned(ctx, principal, name); err != nil {
		return
	}
	return mapRepoError(s.venues.DeleteVenue(ctx, venue.Name))
}

// ListVenues returns the venues visible to the principal ordered by name.
func (s *VenueService) ListVenues(ctx context.Context, principal Principal) ([]Venue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if principal.Username == "" {
		return nil, ErrUnauthorized
	}
	owner := principal.Username
	if principal.IsSuperAdmin {
		owner = ""
	}
	venues, err := s.venues.ListVenues(ctx, owner)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return venues, nil
}

func (s *VenueService) owned(ctx context.Context, principal Principal, name string) (Venue, error) {
	if principal.Username == "" {
		return Venue{}, ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Venue{}, fieldError("name", "venue name is required")
	}
	venue, err := s.venues.GetVenue(ctx, name)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrVenueNotFound
		}
		return Venue{}, err
	}
	if !principal.owns(venue.Owner) {
		return Venue{}, ErrUnauthorized
	}
	return venue, nil
}

func normalizeVenueInput(input VenueInput) VenueInput {
	out := VenueInput{Name: strings.TrimSpace(input.Name)}
	if input.ValidFrom != nil {
		d := civilDate(*input.ValidFrom)
		out.ValidFrom = &d
	}
	if input.ValidUntil != nil {
		d := civilDate(*input.ValidUntil)
		out.ValidUntil = &d
	}
	return out
}

func validateVenueInput(input VenueInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "venue name is required")
	} else if strings.Contains(input.Name, "/") {
		vErr.add("name", "venue name must not contain slashes")
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && input.ValidFrom.After(*input.ValidUntil) {
		vErr.add("valid_until", "valid_until must not be before valid_from")
	}
	return vErr
}
