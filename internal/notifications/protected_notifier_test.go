package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) SendPasswordReset(ctx context.Context, in PasswordResetInput) error {
	f.calls++
	return f.err
}

func newBreaker(inner Notifier, now *time.Time) *ProtectedNotifier {
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		Timeout:          time.Second,
		FailureThreshold: 2,
		Cooldown:         10 * time.Second,
	})
	n.now = func() time.Time { return *now }
	return n
}

func TestProtectedNotifier_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inner := &fakeNotifier{err: errors.New("smtp down")}
	n := newBreaker(inner, &now)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := n.SendPasswordReset(ctx, PasswordResetInput{}); err == nil {
			t.Fatalf("call %d: expected provider error", i)
		}
	}

	if n.State() != string(stateOpen) {
		t.Fatalf("state got %s, want open", n.State())
	}

	err := n.SendPasswordReset(ctx, PasswordResetInput{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open circuit must not reach provider, calls=%d", inner.calls)
	}
}

func TestProtectedNotifier_HalfOpenRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inner := &fakeNotifier{err: errors.New("smtp down")}
	n := newBreaker(inner, &now)
	ctx := context.Background()

	_ = n.SendPasswordReset(ctx, PasswordResetInput{})
	_ = n.SendPasswordReset(ctx, PasswordResetInput{})

	now = now.Add(11 * time.Second)
	inner.err = nil

	if err := n.SendPasswordReset(ctx, PasswordResetInput{}); err != nil {
		t.Fatalf("trial call error: %v", err)
	}
	if n.State() != string(stateClosed) {
		t.Fatalf("state got %s, want closed", n.State())
	}
}

func TestProtectedNotifier_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inner := &fakeNotifier{err: errors.New("smtp down")}
	n := newBreaker(inner, &now)
	ctx := context.Background()

	_ = n.SendPasswordReset(ctx, PasswordResetInput{})
	_ = n.SendPasswordReset(ctx, PasswordResetInput{})

	now = now.Add(11 * time.Second)

	if err := n.SendPasswordReset(ctx, PasswordResetInput{}); err == nil {
		t.Fatalf("expected trial call to fail")
	}
	if n.State() != string(stateOpen) {
		t.Fatalf("state got %s, want open", n.State())
	}
}

func TestLogNotifier_RespectsCancelledContext(t *testing.T) {
	n := NewLogNotifier(nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.SendPasswordReset(ctx, PasswordResetInput{Email: "a@x.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
