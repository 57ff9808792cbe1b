package middlewares

import (
	"github.com/geocoder89/crewhub/internal/actorctx"
	"github.com/gin-gonic/gin"
)

// abortError writes the same error envelope as the handlers package and
// stops the chain.
func abortError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id, ok := actorctx.RequestIDFrom(c.Request.Context()); ok {
		body["requestId"] = id
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
