package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/meal-access/internal/persistence"
)

// VenueRepository implements persistence.VenueRepository.
type VenueRepository struct {
	repository
}

const venueColumns = `name, owner, valid_from, valid_until, created_at, updated_at`

// CreateVenue inserts a new venue.
func (r *VenueRepository) CreateVenue(ctx context.Context, venue persistence.Venue) error {
	if venue.Name == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.exec(ctx,
		`INSERT INTO venues (`+venueColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		venue.Name,
		venue.Owner,
		nullDate(venue.ValidFrom),
		nullDate(venue.ValidUntil),
		formatTimestamp(venue.CreatedAt),
		formatTimestamp(venue.UpdatedAt),
	)
	return err
}

// UpdateVenue replaces the validity window of a venue.
func (r *VenueRepository) UpdateVenue(ctx context.Context, venue persistence.Venue) error {
	return r.execAffecting(ctx,
		`UPDATE venues SET valid_from = ?, valid_until = ?, updated_at = ? WHERE name = ?`,
		nullDate(venue.ValidFrom),
		nullDate(venue.ValidUntil),
		formatTimestamp(venue.UpdatedAt),
		venue.Name,
	)
}

// GetVenue retrieves a venue by name.
func (r *VenueRepository) GetVenue(ctx context.Context, name string) (persistence.Venue, error) {
	venue, err := scanVenue(r.pool.DB().QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE name = ?`, name))
	if err != nil {
		return persistence.Venue{}, r.mapper.MapError(err)
	}
	return venue, nil
}

// ListVenues returns venues ordered by name; a non-empty owner filters by owner.
func (r *VenueRepository) ListVenues(ctx context.Context, owner string) ([]persistence.Venue, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE (? = '' OR owner = ?) ORDER BY name`, owner, owner)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	venues := make([]persistence.Venue, 0)
	for rows.Next() {
		venue, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, venue)
	}
	return venues, rows.Err()
}

// DeleteVenue removes a venue. Employee permission lists are left untouched.
func (r *VenueRepository) DeleteVenue(ctx context.Context, name string) error {
	return r.execAffecting(ctx, `DELETE FROM venues WHERE name = ?`, name)
}

func scanVenue(row scanner) (persistence.Venue, error) {
	var (
		venue              persistence.Venue
		from, until        sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(&venue.Name, &venue.Owner, &from, &until, &createdAt, &updated); err != nil {
		return persistence.Venue{}, err
	}

	var err error
	if venue.ValidFrom, err = parseNullDate("valid_from", from); err != nil {
		return persistence.Venue{}, err
	}
	if venue.ValidUntil, err = parseNullDate("valid_until", until); err != nil {
		return persistence.Venue{}, err
	}
	if venue.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Venue{}, err
	}
	if venue.UpdatedAt, err = parseTimestamp("updated_at", updated); err != nil {
		return persistence.Venue{}, err
	}
	return venue, nil
}
