package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/crewhub/internal/domain/passwordreset"
	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/geocoder89/crewhub/internal/observability"
	"github.com/geocoder89/crewhub/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resetColumns = `id, user_id, token, expires_at, used, used_at, created_at`

type PasswordResetsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
	ttl  time.Duration
}

func NewPasswordResetsRepo(pool *pgxpool.Pool, prom *observability.Prom, ttl time.Duration) *PasswordResetsRepo {
	if ttl <= 0 {
		ttl = passwordreset.DefaultTTL
	}
	return &PasswordResetsRepo{pool: pool, prom: prom, ttl: ttl}
}

func scanResetToken(row pgx.Row) (passwordreset.Token, error) {
	var t passwordreset.Token

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Token,
		&t.ExpiresAt,
		&t.Used,
		&t.UsedAt,
		&t.CreatedAt,
	)
	return t, err
}

// CreateToken retires every active token of the user and inserts a fresh one
// in a single transaction. The user row is locked so two concurrent requests
// for the same account serialise and only the later token stays valid.
func (r *PasswordResetsRepo) CreateToken(ctx context.Context, userID string) (passwordreset.Token, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return passwordreset.Token{}, user.ErrNotFound
	}

	raw, err := security.NewResetToken()
	if err != nil {
		return passwordreset.Token{}, err
	}

	t := passwordreset.Token{
		ID:     uuid.NewString(),
		UserID: userID,
		Token:  raw,
	}

	err = r.prom.ObserveDB("password_resets.create", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var lockedID string
			if err := tx.QueryRow(ctx,
				`SELECT id FROM users WHERE id = $1 FOR UPDATE`,
				userID,
			).Scan(&lockedID); err != nil {
				return err
			}

			if _, err := tx.Exec(ctx,
				`UPDATE password_reset_tokens
				SET used = true, used_at = NOW()
				WHERE user_id = $1 AND used = false AND expires_at > NOW()`,
				userID,
			); err != nil {
				return err
			}

			// expiry is taken from the database clock, the same one validity checks use
			return tx.QueryRow(ctx,
				`INSERT INTO password_reset_tokens (id, user_id, token, expires_at, used, created_at)
				VALUES ($1, $2, $3, NOW() + make_interval(secs => $4), false, NOW())
				RETURNING expires_at, created_at`,
				t.ID, t.UserID, t.Token, r.ttl.Seconds(),
			).Scan(&t.ExpiresAt, &t.CreatedAt)
		})
	})

	if err != nil {
		return passwordreset.Token{}, notFound(err, user.ErrNotFound)
	}

	return t, nil
}

// FindValidToken does not tell unknown, used and expired tokens apart.
func (r *PasswordResetsRepo) FindValidToken(ctx context.Context, token string) (passwordreset.Token, error) {
	if token == "" {
		return passwordreset.Token{}, passwordreset.ErrNotFound
	}

	var t passwordreset.Token

	err := r.prom.ObserveDB("password_resets.find_valid", func() (err error) {
		t, err = scanResetToken(r.pool.QueryRow(ctx,
			`SELECT `+resetColumns+`
			FROM password_reset_tokens
			WHERE token = $1 AND used = false AND expires_at > NOW()`,
			token,
		))
		return err
	})

	return t, notFound(err, passwordreset.ErrNotFound)
}

// MarkAsUsed claims an active token. Only the statement that flips the row
// reports true, so concurrent redemptions of one token cannot both win.
func (r *PasswordResetsRepo) MarkAsUsed(ctx context.Context, token string) (bool, error) {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("password_resets.mark_used", func() (err error) {
		tag, err = r.pool.Exec(ctx,
			`UPDATE password_reset_tokens
			SET used = true, used_at = NOW()
			WHERE token = $1 AND used = false AND expires_at > NOW()`,
			token,
		)
		return err
	})
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PasswordResetsRepo) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("password_resets.cleanup", func() (err error) {
		tag, err = r.pool.Exec(ctx,
			`DELETE FROM password_reset_tokens
			WHERE expires_at < NOW() OR used = true`,
		)
		return err
	})
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (r *PasswordResetsRepo) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}
