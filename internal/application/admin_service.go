package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// MinPasswordLength is the shortest accepted administrator password.
const MinPasswordLength = 8

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// CreateAdminParams wraps the data required to create an administrator.
type CreateAdminParams struct {
	Principal Principal
	Input     AdminInput
}

// UpdateAdminParams wraps the data required to update an administrator. An
// empty Input.Password keeps the current password.
type UpdateAdminParams struct {
	Principal Principal
	Username  string
	Input     AdminInput
}

// AdminService manages operator accounts. Every operation except Bootstrap
// requires a super administrator.
type AdminService struct {
	admins AdminRepository
	hash   PasswordHasher
	now    func() time.Time
	logger *slog.Logger
}

// NewAdminService wires dependencies for the admin service.
func NewAdminService(admins AdminRepository, hash PasswordHasher, now func() time.Time) *AdminService {
	return NewAdminServiceWithLogger(admins, hash, now, nil)
}

// NewAdminServiceWithLogger wires dependencies for the admin service with a specific logger.
func NewAdminServiceWithLogger(admins AdminRepository, hash PasswordHasher, now func() time.Time, logger *slog.Logger) *AdminService {
	if hash == nil {
		hash = HashPassword
	}
	if now == nil {
		now = time.Now
	}
	return &AdminService{admins: admins, hash: hash, now: now, logger: defaultLogger(logger)}
}

func (s *AdminService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AdminService", operation, attrs...)
}

// CreateAdmin validates input and stores a new administrator.
func (s *AdminService) CreateAdmin(ctx context.Context, params CreateAdminParams) (admin Admin, err error) {
	if s == nil {
		err = fmt.Errorf("AdminService is nil")
		return
	}
	if s.admins == nil {
		err = fmt.Errorf("admin repository not configured")
		return
	}

	input := normalizeAdminInput(params.Input)
	logger := s.loggerWith(ctx, "CreateAdmin", "principal", params.Principal.Username, "username", input.Username)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to create admin", err)
			return
		}
		logger.InfoContext(ctx, "admin created", "is_super_admin", admin.IsSuperAdmin)
	}()

	if !params.Principal.IsSuperAdmin {
		err = ErrUnauthorized
		return
	}
	if vErr := validateAdminInput(input, true); vErr.HasErrors() {
		err = vErr
		return
	}

	admin, err = s.create(ctx, input)
	return
}

func (s *AdminService) create(ctx context.Context, input AdminInput) (Admin, error) {
	hash, err := s.hash(input.Password)
	if err != nil {
		return Admin{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	admin := Admin{
		Username:     input.Username,
		Name:         input.Name,
		Email:        input.Email,
		IsSuperAdmin: input.IsSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.admins.CreateAdmin(ctx, admin, hash); err != nil {
		return Admin{}, mapRepoError(err)
	}
	return admin, nil
}

// UpdateAdmin changes profile fields, role and optionally the password.
func (s *AdminService) UpdateAdmin(ctx context.Context, params UpdateAdminParams) (admin Admin, err error) {
	if s == nil {
		err = fmt.Errorf("AdminService is nil")
		return
	}
	if s.admins == nil {
		err = fmt.Errorf("admin repository not configured")
		return
	}

	username := strings.TrimSpace(params.Username)
	logger := s.loggerWith(ctx, "UpdateAdmin", "principal", params.Principal.Username, "username", username)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to update admin", err)
			return
		}
		logger.InfoContext(ctx, "admin updated")
	}()

	if !params.Principal.IsSuperAdmin {
		err = ErrUnauthorized
		return
	}

	var creds AdminCredentials
	creds, err = s.admins.GetAdminCredentials(ctx, username)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	input := normalizeAdminInput(params.Input)
	input.Username = username
	if vErr := validateAdminInput(input, false); vErr.HasErrors() {
		err = vErr
		return
	}
	if username == params.Principal.Username && !input.IsSuperAdmin {
		err = fieldError("is_super_admin", "you cannot remove your own super admin role")
		return
	}

	var hash string
	if input.Password != "" {
		if hash, err = s.hash(input.Password); err != nil {
			err = fmt.Errorf("hash password: %w", err)
			return
		}
	}

	admin = creds.Admin
	admin.Name = input.Name
	admin.Email = input.Email
	admin.IsSuperAdmin = input.IsSuperAdmin
	admin.UpdatedAt = s.now()
	if err = s.admins.UpdateAdmin(ctx, admin, hash); err != nil {
		err = mapRepoError(err)
	}
	return
}

// DeleteAdmin removes an administrator other than the principal.
func (s *AdminService) DeleteAdmin(ctx context.Context, principal Principal, username string) (err error) {
	if s == nil {
		return fmt.Errorf("AdminService is nil")
	}
	if s.admins == nil {
		return fmt.Errorf("admin repository not configured")
	}

	username = strings.TrimSpace(username)
	logger := s.loggerWith(ctx, "DeleteAdmin", "principal", principal.Username, "username", username)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to delete admin", err)
			return
		}
		logger.InfoContext(ctx, "admin deleted")
	}()

	if !principal.IsSuperAdmin {
		return ErrUnauthorized
	}
	if username == principal.Username {
		return fieldError("username", "you cannot delete your own account")
	}
	return mapRepoError(s.admins.DeleteAdmin(ctx, username))
}

// ListAdmins returns every administrator ordered by username.
func (s *AdminService) ListAdmins(ctx context.Context, principal Principal) ([]Admin, error) {
	if s == nil {
		return nil, fmt.Errorf("AdminService is nil")
	}
	if s.admins == nil {
		return nil, fmt.Errorf("admin repository not configured")
	}
	if !principal.IsSuperAdmin {
		return nil, ErrUnauthorized
	}
	admins, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return admins, nil
}

// Bootstrap creates input as a super administrator when no administrator
// exists yet. It reports whether an account was created.
func (s *AdminService) Bootstrap(ctx context.Context, input AdminInput) (created bool, err error) {
	if s == nil {
		return false, fmt.Errorf("AdminService is nil")
	}
	if s.admins == nil {
		return false, fmt.Errorf("admin repository not configured")
	}

	input = normalizeAdminInput(input)
	input.IsSuperAdmin = true
	logger := s.loggerWith(ctx, "Bootstrap", "username", input.Username)

	count, err := s.admins.CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		logger.DebugContext(ctx, "administrators already present", "count", count)
		return false, nil
	}
	if vErr := validateAdminInput(input, true); vErr.HasErrors() {
		return false, vErr
	}
	if _, err := s.create(ctx, input); err != nil {
		return false, err
	}
	logger.InfoContext(ctx, "initial super admin created")
	return true, nil
}

func normalizeAdminInput(input AdminInput) AdminInput {
	return AdminInput{
		Username:     strings.TrimSpace(input.Username),
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Password:     input.Password,
		IsSuperAdmin: input.IsSuperAdmin,
	}
}

func validateAdminInput(input AdminInput, requirePassword bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Username == "" {
		vErr.add("username", "username is required")
	} else if strings.ContainsAny(input.Username, " \t/") {
		vErr.add("username", "username must not contain spaces or slashes")
	}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			vErr.add("email", "email is invalid")
		}
	}
	switch {
	case input.Password == "" && requirePassword:
		vErr.add("password", "password is required")
	case input.Password != "" && len(input.Password) < MinPasswordLength:
		vErr.add("password", fmt.Sprintf("password must have at least %d characters", MinPasswordLength))
	}

	return vErr
}
