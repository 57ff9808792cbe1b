package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin must run after RequireAuth. It fails closed: a missing claim
// or a store error never lets the request through.
func (m *AuthMiddleware) RequireAdmin(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, ok := ClaimFromContext(c)
		if !ok {
			m.log.ErrorContext(c.Request.Context(), "admin gate reached without authentication",
				"route", c.FullPath(),
			)
			abortError(c, http.StatusUnauthorized, "authentication_required", "Authentication required")
			return
		}

		isAdmin, err := roles.IsAdmin(c.Request.Context(), claim.UserID)
		if err != nil {
			m.log.ErrorContext(c.Request.Context(), "admin check failed",
				"user_id", claim.UserID,
				"err", err,
			)
			abortError(c, http.StatusInternalServerError, "internal_error", "Could not verify permissions")
			return
		}

		if !isAdmin {
			abortError(c, http.StatusForbidden, "forbidden", "Admin role required")
			return
		}

		c.Next()
	}
}
