package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geocoder89/crewhub/internal/domain/passwordreset"
)

func TestPasswordResets_NewTokenInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	r := NewPasswordResetsRepo(time.Hour)

	first, err := r.CreateToken(ctx, "u-1")
	if err != nil {
		t.Fatalf("CreateToken error: %v", err)
	}
	second, err := r.CreateToken(ctx, "u-1")
	if err != nil {
		t.Fatalf("CreateToken error: %v", err)
	}

	if _, err := r.FindValidToken(ctx, first.Token); !errors.Is(err, passwordreset.ErrNotFound) {
		t.Fatalf("first token should be invalid, got %v", err)
	}
	if _, err := r.FindValidToken(ctx, second.Token); err != nil {
		t.Fatalf("second token should be valid, got %v", err)
	}
}

func TestPasswordResets_OtherUsersUnaffected(t *testing.T) {
	ctx := context.Background()
	r := NewPasswordResetsRepo(time.Hour)

	a, _ := r.CreateToken(ctx, "u-a")
	_, _ = r.CreateToken(ctx, "u-b")

	if _, err := r.FindValidToken(ctx, a.Token); err != nil {
		t.Fatalf("token of u-a must survive a token for u-b, got %v", err)
	}
}

func TestPasswordResets_ExpiryAndTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	r := NewPasswordResetsRepo(0)
	r.SetClock(func() time.Time { return now })

	tok, _ := r.CreateToken(ctx, "u-1")
	if !tok.ExpiresAt.Equal(now.Add(passwordreset.DefaultTTL)) {
		t.Fatalf("expires_at got %v, want created+1h", tok.ExpiresAt)
	}
	if len(tok.Token) != 64 {
		t.Fatalf("raw token should be 64 hex chars, got %d", len(tok.Token))
	}

	now = now.Add(time.Hour)

	if _, err := r.FindValidToken(ctx, tok.Token); !errors.Is(err, passwordreset.ErrNotFound) {
		t.Fatalf("expired token should be not found, got %v", err)
	}
}

func TestPasswordResets_MarkAsUsedIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewPasswordResetsRepo(time.Hour)

	tok, _ := r.CreateToken(ctx, "u-1")

	for i, want := range []bool{true, false} {
		claimed, err := r.MarkAsUsed(ctx, tok.Token)
		if err != nil {
			t.Fatalf("MarkAsUsed #%d error: %v", i, err)
		}
		if claimed != want {
			t.Fatalf("MarkAsUsed #%d claimed got %v, want %v", i, claimed, want)
		}
	}
	if claimed, err := r.MarkAsUsed(ctx, "unknown"); err != nil || claimed {
		t.Fatalf("MarkAsUsed(unknown) got %v, %v", claimed, err)
	}

	if _, err := r.FindValidToken(ctx, tok.Token); !errors.Is(err, passwordreset.ErrNotFound) {
		t.Fatalf("used token should be not found, got %v", err)
	}
}

func TestPasswordResets_Cleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	r := NewPasswordResetsRepo(time.Hour)
	r.SetClock(func() time.Time { return now })

	used, _ := r.CreateToken(ctx, "u-1")
	_, _ = r.MarkAsUsed(ctx, used.Token)

	_, _ = r.CreateToken(ctx, "u-2") // expires below

	now = now.Add(30 * time.Minute)
	live, _ := r.CreateToken(ctx, "u-3")

	now = now.Add(31 * time.Minute)

	removed, err := r.CleanupExpiredTokens(ctx)
	if err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed got %d, want 2", removed)
	}
	if r.Len() != 1 {
		t.Fatalf("rows left got %d, want 1", r.Len())
	}
	if _, err := r.FindValidToken(ctx, live.Token); err != nil {
		t.Fatalf("live token should survive cleanup, got %v", err)
	}
}

func TestPasswordResets_MarkAsUsedSkipsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	r := NewPasswordResetsRepo(time.Hour)
	r.SetClock(func() time.Time { return now })

	tok, _ := r.CreateToken(ctx, "u-1")
	now = now.Add(time.Hour)

	claimed, err := r.MarkAsUsed(ctx, tok.Token)
	if err != nil {
		t.Fatalf("MarkAsUsed error: %v", err)
	}
	if claimed {
		t.Fatalf("expired token must not be claimed")
	}
}

func TestPasswordResets_MarkAsUsedSingleWinner(t *testing.T) {
	ctx := context.Background()
	r := NewPasswordResetsRepo(time.Hour)

	tok, _ := r.CreateToken(ctx, "u-1")

	const callers = 8

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if claimed, err := r.MarkAsUsed(ctx, tok.Token); err == nil && claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("claims got %d, want 1", wins.Load())
	}
}
