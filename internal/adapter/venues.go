package adapter

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/persistence"
)

// VenueRepository adapts persistence venues to application.VenueRepository.
type VenueRepository struct {
	repo persistence.VenueRepository
}

var _ application.VenueRepository = (*VenueRepository)(nil)

// NewVenueRepository wraps repo.
func NewVenueRepository(repo persistence.VenueRepository) *VenueRepository {
	return &VenueRepository{repo: repo}
}

func (a *VenueRepository) CreateVenue(ctx context.Context, venue application.Venue) error {
	return a.repo.CreateVenue(ctx, toPersistenceVenue(venue))
}

func (a *VenueRepository) GetVenue(ctx context.Context, name string) (application.Venue, error) {
	record, err := a.repo.GetVenue(ctx, name)
	if err != nil {
		return application.Venue{}, err
	}
	return toApplicationVenue(record), nil
}

func (a *VenueRepository) UpdateVenue(ctx context.Context, venue application.Venue) error {
	return a.repo.UpdateVenue(ctx, toPersistenceVenue(venue))
}

func (a *VenueRepository) DeleteVenue(ctx context.Context, name string) error {
	return a.repo.DeleteVenue(ctx, name)
}

func (a *VenueRepository) ListVenues(ctx context.Context, owner string) ([]application.Venue, error) {
	records, err := a.repo.ListVenues(ctx, owner)
	if err != nil {
		return nil, err
	}
	venues := make([]application.Venue, 0, len(records))
	for _, record := range records {
		venues = append(venues, toApplicationVenue(record))
	}
	return venues, nil
}

// VenueCatalog serves venue lookups for the authorization path. Concurrent
// lookups of the same venue share one storage read.
type VenueCatalog struct {
	repo  persistence.VenueRepository
	group singleflight.Group
}

var _ application.VenueCatalog = (*VenueCatalog)(nil)

// NewVenueCatalog wraps repo.
func NewVenueCatalog(repo persistence.VenueRepository) *VenueCatalog {
	return &VenueCatalog{repo: repo}
}

func (a *VenueCatalog) FindVenue(ctx context.Context, name string) (application.Venue, error) {
	value, err, _ := a.group.Do(name, func() (any, error) {
		return a.repo.GetVenue(ctx, name)
	})
	if err != nil {
		return application.Venue{}, err
	}
	return toApplicationVenue(value.(persistence.Venue)), nil
}
