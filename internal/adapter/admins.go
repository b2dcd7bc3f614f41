package adapter

import (
	"context"

	"github.com/example/meal-access/internal/application"
	"github.com/example/meal-access/internal/persistence"
)

// AdminRepository adapts persistence admins to application.AdminRepository.
type AdminRepository struct {
	repo persistence.AdminRepository
}

var _ application.AdminRepository = (*AdminRepository)(nil)

// NewAdminRepository wraps repo.
func NewAdminRepository(repo persistence.AdminRepository) *AdminRepository {
	return &AdminRepository{repo: repo}
}

func (a *AdminRepository) CreateAdmin(ctx context.Context, admin application.Admin, passwordHash string) error {
	return a.repo.CreateAdmin(ctx, toPersistenceAdmin(admin, passwordHash))
}

func (a *AdminRepository) GetAdminCredentials(ctx context.Context, username string) (application.AdminCredentials, error) {
	record, err := a.repo.GetAdmin(ctx, username)
	if err != nil {
		return application.AdminCredentials{}, err
	}
	return application.AdminCredentials{Admin: toApplicationAdmin(record), PasswordHash: record.PasswordHash}, nil
}

// UpdateAdmin keeps the stored hash when passwordHash is empty.
func (a *AdminRepository) UpdateAdmin(ctx context.Context, admin application.Admin, passwordHash string) error {
	return a.repo.UpdateAdmin(ctx, toPersistenceAdmin(admin, passwordHash))
}

func (a *AdminRepository) DeleteAdmin(ctx context.Context, username string) error {
	return a.repo.DeleteAdmin(ctx, username)
}

func (a *AdminRepository) ListAdmins(ctx context.Context) ([]application.Admin, error) {
	records, err := a.repo.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	admins := make([]application.Admin, 0, len(records))
	for _, record := range records {
		admins = append(admins, toApplicationAdmin(record))
	}
	return admins, nil
}

func (a *AdminRepository) CountAdmins(ctx context.Context) (int, error) {
	return a.repo.CountAdmins(ctx)
}
