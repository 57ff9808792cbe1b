package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/crewhub/internal/actorctx"
	"github.com/geocoder89/crewhub/internal/auth"
	"github.com/gin-gonic/gin"
)

// TokenVerifier is satisfied by *auth.Codec.
type TokenVerifier interface {
	Decode(token string) (auth.Claim, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
	log    *slog.Logger
}

func NewAuthMiddleware(tokens TokenVerifier, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{tokens: tokens, log: log}
}

const ctxClaimKey = "auth.claim"

func bearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// RequireAuth decodes the bearer token and attaches the claim to both the
// gin context and the request context. Missing and invalid tokens get
// different error codes.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortError(c, http.StatusUnauthorized, "missing_token", "Missing or malformed Authorization header")
			return
		}

		claim, err := m.tokens.Decode(raw)
		if err != nil {
			msg := "Invalid access token"
			if errors.Is(err, auth.ErrExpired) {
				msg = "Access token has expired"
			}
			abortError(c, http.StatusUnauthorized, "invalid_token", msg)
			return
		}

		c.Set(ctxClaimKey, claim)
		c.Request = c.Request.WithContext(actorctx.WithClaim(c.Request.Context(), claim))

		c.Next()
	}
}

// ClaimFromContext returns the claim stored by RequireAuth.
func ClaimFromContext(c *gin.Context) (auth.Claim, bool) {
	v, ok := c.Get(ctxClaimKey)
	if ok {
		if claim, ok := v.(auth.Claim); ok && claim.UserID != "" {
			return claim, true
		}
	}
	return actorctx.ClaimFrom(c.Request.Context())
}
