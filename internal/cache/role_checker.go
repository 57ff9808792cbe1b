package cache

import (
	"context"
	"log/slog"
)

type AdminSource interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RoleChecker answers IsAdmin from the store when it can and from the
// credential store otherwise. Source errors are returned and never cached;
// store errors only cost a trip to the source.
type RoleChecker struct {
	source AdminSource
	store  RoleStore
	log    *slog.Logger
}

func NewRoleChecker(source AdminSource, store RoleStore, log *slog.Logger) *RoleChecker {
	if log == nil {
		log = slog.Default()
	}
	return &RoleChecker{source: source, store: store, log: log}
}

func (c *RoleChecker) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if c.store != nil {
		isAdmin, found, err := c.store.Get(ctx, userID)
		if err != nil {
			c.log.WarnContext(ctx, "role cache read failed", "user_id", userID, "err", err)
		} else if found {
			return isAdmin, nil
		}
	}

	isAdmin, err := c.source.IsAdmin(ctx, userID)
	if err != nil {
		return false, err
	}

	if c.store != nil {
		if err := c.store.Set(ctx, userID, isAdmin); err != nil {
			c.log.WarnContext(ctx, "role cache write failed", "user_id", userID, "err", err)
		}
	}

	return isAdmin, nil
}

// Invalidate drops the cached answer after a role change.
func (c *RoleChecker) Invalidate(ctx context.Context, userID string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, userID); err != nil {
		c.log.WarnContext(ctx, "role cache invalidate failed", "user_id", userID, "err", err)
	}
}
