package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/crewhub/internal/domain/passwordreset"
	"github.com/geocoder89/crewhub/internal/security"
	"github.com/google/uuid"
)

// PasswordResetsRepo is the in-process reset ledger. A single mutex gives
// CreateToken the same all-or-nothing behaviour as the postgres transaction.
type PasswordResetsRepo struct {
	mu     sync.Mutex
	tokens map[string]passwordreset.Token // raw token -> row
	ttl    time.Duration
	now    func() time.Time
}

func NewPasswordResetsRepo(ttl time.Duration) *PasswordResetsRepo {
	if ttl <= 0 {
		ttl = passwordreset.DefaultTTL
	}

	return &PasswordResetsRepo{
		tokens: make(map[string]passwordreset.Token),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock swaps the time source; tests use it to move past expiry.
func (r *PasswordResetsRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

func (r *PasswordResetsRepo) CreateToken(ctx context.Context, userID string) (passwordreset.Token, error) {
	raw, err := security.NewResetToken()
	if err != nil {
		return passwordreset.Token{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()

	for k, t := range r.tokens {
		if t.UserID == userID && t.IsValid(now) {
			t.Used = true
			t.UsedAt = &now
			r.tokens[k] = t
		}
	}

	t := passwordreset.Token{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     raw,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}
	r.tokens[raw] = t

	return t, nil
}

func (r *PasswordResetsRepo) FindValidToken(ctx context.Context, token string) (passwordreset.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[token]
	if !ok || !t.IsValid(r.now().UTC()) {
		return passwordreset.Token{}, passwordreset.ErrNotFound
	}
	return t, nil
}

// MarkAsUsed flips an active token to used and reports whether this call did it.
func (r *PasswordResetsRepo) MarkAsUsed(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()

	t, ok := r.tokens[token]
	if !ok || !t.IsValid(now) {
		return false, nil
	}

	t.Used = true
	t.UsedAt = &now
	r.tokens[token] = t

	return true, nil
}

func (r *PasswordResetsRepo) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()

	var removed int64
	for k, t := range r.tokens {
		if t.Used || t.ExpiresAt.Before(now) {
			delete(r.tokens, k)
			removed++
		}
	}

	return removed, nil
}

// Len is the number of rows currently held, for tests.
func (r *PasswordResetsRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
