package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/geocoder89/crewhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// notFound maps pgx.ErrNoRows to the domain sentinel after metrics saw the raw error.
func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.find_by_email", func() (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			FROM users
			WHERE lower(email) = $1`,
			user.NormalizeEmail(email),
		))
		return err
	})

	return u, notFound(err, user.ErrNotFound)
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.prom.ObserveDB("users.find_by_id", func() (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			FROM users
			WHERE id = $1`,
			id,
		))
		return err
	})

	return u, notFound(err, user.ErrNotFound)
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string) (user.User, error) {
	return r.CreateWithRole(ctx, email, passwordHash, name, user.RoleUser)
}

func (r *UsersRepo) CreateWithRole(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        user.NormalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.prom.ObserveDB("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

// IsAdmin answers false (not an error) when the user does not exist.
func (r *UsersRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}

	var isAdmin bool

	err := r.prom.ObserveDB("users.is_admin", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = $2)`,
			userID, user.RoleAdmin,
		).Scan(&isAdmin)
	})

	if err != nil {
		return false, err
	}

	return isAdmin, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return user.ErrNotFound
	}

	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("users.update_password", func() (err error) {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			SET password_hash = $2, updated_at = NOW()
			WHERE id = $1`,
			userID, passwordHash,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) UpdateRole(ctx context.Context, userID, role string) (user.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.prom.ObserveDB("users.update_role", func() (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			SET role = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			userID, role,
		))
		return err
	})

	return u, notFound(err, user.ErrNotFound)
}

func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var out []user.User

	err := r.prom.ObserveDB("users.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+userColumns+`
			FROM users
			ORDER BY created_at ASC, id ASC
			LIMIT $1 OFFSET $2`,
			limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]user.User, 0, limit)
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	return out, err
}
