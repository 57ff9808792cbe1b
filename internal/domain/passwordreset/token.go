package passwordreset

import (
	"errors"
	"time"
)

// DefaultTTL is how long a reset token stays redeemable.
const DefaultTTL = time.Hour

// ErrNotFound covers unknown, used and expired tokens alike.
var ErrNotFound = errors.New("reset token not found")

// Token is one entry of the reset ledger. Used only ever moves false -> true.
type Token struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Token     string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsValid reports whether the token can still be redeemed at now.
func (t Token) IsValid(now time.Time) bool {
	return !t.Used && !t.IsExpired(now)
}
