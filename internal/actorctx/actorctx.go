// Package actorctx carries the authenticated caller and request id on a
// request-scoped context.Context.
package actorctx

import (
	"context"

	"github.com/geocoder89/crewhub/internal/auth"
)

type ctxKey int

const (
	claimKey ctxKey = iota
	requestIDKey
)

func WithClaim(ctx context.Context, claim auth.Claim) context.Context {
	return context.WithValue(ctx, claimKey, claim)
}

// ClaimFrom returns the claim attached by the auth middleware. ok is false
// when authentication has not run or produced no user id.
func ClaimFrom(ctx context.Context) (auth.Claim, bool) {
	claim, ok := ctx.Value(claimKey).(auth.Claim)

	return claim, ok && claim.UserID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	claim, ok := ClaimFrom(ctx)

	return claim.UserID, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)

	return v, ok && v != ""
}
