package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo is an in-process credential store used by tests and local runs
// without postgres. Emails are keyed in normalized form.
type UsersRepo struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string // email -> id
	now     func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string) (user.User, error) {
	return r.CreateWithRole(ctx, email, passwordHash, name, user.RoleUser)
}

func (r *UsersRepo) CreateWithRole(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	email = user.NormalizeEmail(email)
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.byID[u.ID] = u
	r.byEmail[email] = u.ID

	return u, nil
}

func (r *UsersRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[userID]
	return ok && u.IsAdmin(), nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = r.now().UTC()
	r.byID[userID] = u

	return nil
}

func (r *UsersRepo) UpdateRole(ctx context.Context, userID, role string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u.Role = role
	u.UpdatedAt = r.now().UTC()
	r.byID[userID] = u

	return u, nil
}

// List orders by creation time then id, matching the postgres repo.
func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	r.mu.RLock()
	all := make([]user.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []user.User{}, nil
	}
	all = all[offset:]

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	return all, nil
}
