package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loyalbridge/admin/internal/model"
)

// SeedStore is what SeedAdmins needs from the credential store.
type SeedStore interface {
	AdminExists(ctx context.Context, email string) (bool, error)
	CreateAdmin(ctx context.Context, admin *model.Admin) error
}

// SeedAdmin describes an account to provision.
type SeedAdmin struct {
	Email     string
	Password  string
	Role      model.AdminRole
	FirstName string
	LastName  string
}

// DefaultSeedAdmins returns one demo account per role. The passwords are
// public; only seed them into development databases.
func DefaultSeedAdmins() []SeedAdmin {
	return []SeedAdmin{
		{Email: "admin@loyalbridge.io", Password: "AdminPassword123!", Role: model.RoleSuperAdmin, FirstName: "Super", LastName: "Admin"},
		{Email: "finance@loyalbridge.io", Password: "FinancePassword123!", Role: model.RoleFinanceTeam, FirstName: "Finance", LastName: "Manager"},
		{Email: "support@loyalbridge.io", Password: "SupportPassword123!", Role: model.RoleSupportStaff, FirstName: "Support", LastName: "Agent"},
		{Email: "partner@loyalbridge.io", Password: "PartnerPassword123!", Role: model.RolePartnerAdmin, FirstName: "Partner", LastName: "Manager"},
	}
}

// SeedAdmins creates each admin that does not exist yet and returns how
// many were created.
func SeedAdmins(ctx context.Context, store SeedStore, hasher PasswordHasher, admins []SeedAdmin, logger *slog.Logger) (int, error) {
	created := 0
	for _, a := range admins {
		exists, err := store.AdminExists(ctx, a.Email)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		hash, err := hasher.Hash(a.Password)
		if err != nil {
			return created, err
		}
		admin := &model.Admin{
			Email:        a.Email,
			PasswordHash: hash,
			Role:         a.Role,
			FirstName:    a.FirstName,
			LastName:     a.LastName,
			IsActive:     true,
		}
		if err := store.CreateAdmin(ctx, admin); err != nil {
			return created, fmt.Errorf("seed %s: %w", a.Email, err)
		}
		created++
		if logger != nil {
			logger.Info("seeded admin", "email", admin.Email, "role", admin.Role)
		}
	}
	return created, nil
}
