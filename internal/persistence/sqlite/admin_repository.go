package sqlite

import (
	"context"
	"fmt"

	"github.com/example/meal-access/internal/persistence"
)

// AdminRepository implements persistence.AdminRepository.
type AdminRepository struct {
	repository
}

const adminColumns = `username, name, email, password_hash, is_super_admin, created_at, updated_at`

// CreateAdmin inserts a new administrator.
func (r *AdminRepository) CreateAdmin(ctx context.Context, admin persistence.Admin) error {
	if admin.Username == "" || admin.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.exec(ctx,
		`INSERT INTO admins (`+adminColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		admin.Username,
		admin.Name,
		admin.Email,
		admin.PasswordHash,
		admin.IsSuperAdmin,
		formatTimestamp(admin.CreatedAt),
		formatTimestamp(admin.UpdatedAt),
	)
	return err
}

// UpdateAdmin updates profile fields. An empty PasswordHash keeps the stored one.
func (r *AdminRepository) UpdateAdmin(ctx context.Context, admin persistence.Admin) error {
	return r.execAffecting(ctx, `
		UPDATE admins
		SET name = ?, email = ?, password_hash = COALESCE(NULLIF(?, ''), password_hash),
		    is_super_admin = ?, updated_at = ?
		WHERE username = ?`,
		admin.Name,
		admin.Email,
		admin.PasswordHash,
		admin.IsSuperAdmin,
		formatTimestamp(admin.UpdatedAt),
		admin.Username,
	)
}

// GetAdmin retrieves an administrator by username.
func (r *AdminRepository) GetAdmin(ctx context.Context, username string) (persistence.Admin, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE username = ?`, username)
	admin, err := scanAdmin(row)
	if err != nil {
		return persistence.Admin{}, r.mapper.MapError(err)
	}
	return admin, nil
}

// ListAdmins returns administrators ordered by username.
func (r *AdminRepository) ListAdmins(ctx context.Context) ([]persistence.Admin, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY username`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	admins := make([]persistence.Admin, 0)
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}

// DeleteAdmin removes an administrator; sessions cascade.
func (r *AdminRepository) DeleteAdmin(ctx context.Context, username string) error {
	return r.execAffecting(ctx, `DELETE FROM admins WHERE username = ?`, username)
}

// CountAdmins returns the number of administrators.
func (r *AdminRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count admins: %w", err)
	}
	return count, nil
}

func scanAdmin(row scanner) (persistence.Admin, error) {
	var (
		admin              persistence.Admin
		createdAt, updated string
	)
	if err := row.Scan(&admin.Username, &admin.Name, &admin.Email, &admin.PasswordHash,
		&admin.IsSuperAdmin, &createdAt, &updated); err != nil {
		return persistence.Admin{}, err
	}
	var err error
	if admin.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Admin{}, err
	}
	if admin.UpdatedAt, err = parseTimestamp("updated_at", updated); err != nil {
		return persistence.Admin{}, err
	}
	return admin, nil
}
