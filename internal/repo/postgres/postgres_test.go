package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/crewhub/internal/db"
	"github.com/geocoder89/crewhub/internal/domain/passwordreset"
	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool needs a disposable database in TEST_DB_DSN; the tables are truncated.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn, db.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE password_reset_tokens, users CASCADE`)
	require.NoError(t, err)

	return pool
}

func TestUsersRepo_CreateAndFind(t *testing.T) {
	pool := testPool(t)
	repo := NewUsersRepo(pool, nil)
	ctx := context.Background()

	u, err := repo.Create(ctx, " Ada@Crew.IO ", "hash", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@crew.io", u.Email)
	assert.Equal(t, user.RoleUser, u.Role)

	got, err := repo.FindByEmail(ctx, "ADA@crew.io")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.Create(ctx, "ada@crew.io", "hash", "Dup")
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	_, err = repo.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUsersRepo_IsAdminAndRole(t *testing.T) {
	pool := testPool(t)
	repo := NewUsersRepo(pool, nil)
	ctx := context.Background()

	u, err := repo.Create(ctx, "bo@crew.io", "hash", "Bo")
	require.NoError(t, err)

	ok, err := repo.IsAdmin(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.UpdateRole(ctx, u.ID, user.RoleAdmin)
	require.NoError(t, err)

	ok, err = repo.IsAdmin(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAdmin(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordResetsRepo_Lifecycle(t *testing.T) {
	pool := testPool(t)
	users := NewUsersRepo(pool, nil)
	resets := NewPasswordResetsRepo(pool, nil, time.Hour)
	ctx := context.Background()

	u, err := users.Create(ctx, "cy@crew.io", "hash", "Cy")
	require.NoError(t, err)

	first, err := resets.CreateToken(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, first.ExpiresAt.Sub(first.CreatedAt))
	second, err := resets.CreateToken(ctx, u.ID)
	require.NoError(t, err)

	_, err = resets.FindValidToken(ctx, first.Token)
	assert.ErrorIs(t, err, passwordreset.ErrNotFound)

	got, err := resets.FindValidToken(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	claimed, err := resets.MarkAsUsed(ctx, second.Token)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = resets.MarkAsUsed(ctx, second.Token)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = resets.FindValidToken(ctx, second.Token)
	assert.ErrorIs(t, err, passwordreset.ErrNotFound)

	removed, err := resets.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestPasswordResetsRepo_UnknownUser(t *testing.T) {
	pool := testPool(t)
	resets := NewPasswordResetsRepo(pool, nil, time.Hour)

	_, err := resets.CreateToken(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, user.ErrNotFound)
}
