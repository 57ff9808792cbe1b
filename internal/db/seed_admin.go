package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/geocoder89/crewhub/internal/security"
)

type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

type adminStore interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	CreateWithRole(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
}

// EnsureAdminUser creates the bootstrap admin once. An existing account with
// that email is left untouched, whatever its role.
func EnsureAdminUser(ctx context.Context, users adminStore, seed AdminSeed, log *slog.Logger) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	_, err := users.FindByEmail(ctx, seed.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(seed.Password)
	if err != nil {
		return err
	}

	name := seed.Name
	if name == "" {
		name = "Admin"
	}

	u, err := users.CreateWithRole(ctx, seed.Email, hash, name, user.RoleAdmin)
	if err != nil {
		// another instance seeded first
		if errors.Is(err, user.ErrEmailTaken) {
			return nil
		}
		return err
	}

	if log != nil {
		log.InfoContext(ctx, "admin user seeded", "user_id", u.ID)
	}
	return nil
}
