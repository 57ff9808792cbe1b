package cache

import (
	"context"
	"sync"
	"time"
)

const DefaultRoleTTL = 30 * time.Second

// RoleStore holds the answer to "is this user an admin" for a short while.
// A read error is reported separately from a miss so callers can fall
// through to the source of truth.
type RoleStore interface {
	Get(ctx context.Context, userID string) (isAdmin bool, found bool, err error)
	Set(ctx context.Context, userID string, isAdmin bool) error
	Delete(ctx context.Context, userID string) error
}

type entry struct {
	isAdmin bool
	exp     time.Time
}

// MemoryStore is the per-process RoleStore used when redis is not configured.
type MemoryStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
	now func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultRoleTTL
	}

	return &MemoryStore{
		ttl: ttl,
		m:   make(map[string]entry),
		now: time.Now,
	}
}

func (c *MemoryStore) Get(_ context.Context, userID string) (bool, bool, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.m[userID]
	c.mu.RUnlock()
	if !ok {
		return false, false, nil
	}

	if !now.Before(e.exp) {
		c.mu.Lock()
		// recheck, a Set may have refreshed it meanwhile
		if cur, still := c.m[userID]; still && !now.Before(cur.exp) {
			delete(c.m, userID)
		}
		c.mu.Unlock()
		return false, false, nil
	}

	return e.isAdmin, true, nil
}

func (c *MemoryStore) Set(_ context.Context, userID string, isAdmin bool) error {
	c.mu.Lock()
	c.m[userID] = entry{isAdmin: isAdmin, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryStore) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	delete(c.m, userID)
	c.mu.Unlock()
	return nil
}

func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
