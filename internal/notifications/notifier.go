package notifications

import (
	"context"
	"time"
)

type PasswordResetInput struct {
	Email     string
	Name      string
	ResetURL  string
	ExpiresAt time.Time
}

// Notifier delivers account emails. Implementations must not log the reset URL
// outside development, it is a bearer credential.
type Notifier interface {
	SendPasswordReset(ctx context.Context, input PasswordResetInput) error
}
