package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the log instead of sending mail.
type LogNotifier struct {
	log         *slog.Logger
	revealLinks bool
}

func NewLogNotifier(log *slog.Logger, revealLinks bool) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, revealLinks: revealLinks}
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, in PasswordResetInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attrs := []any{
		"email", in.Email,
		"name", in.Name,
		"expires_at", in.ExpiresAt,
	}

	if n.revealLinks {
		attrs = append(attrs, "reset_url", in.ResetURL)
	}

	n.log.InfoContext(ctx, "notification.password_reset", attrs...)
	return nil
}
