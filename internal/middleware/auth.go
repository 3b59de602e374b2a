package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ferneyS02/licor-solution/internal/auth"
	"github.com/ferneyS02/licor-solution/internal/utils"
)

const actorContextKey = "actor"

// JWTAuth rejects requests without a valid bearer token and stores the
// authenticated actor in the request context for handlers.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "UNAUTHORIZED",
				"message": "missing bearer token",
			})
			return
		}

		claims, err := utils.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "UNAUTHORIZED",
				"message": "invalid or expired token",
			})
			return
		}

		c.Set(actorContextKey, auth.Actor{
			ID:   claims.UserId,
			Name: claims.Username,
			Role: claims.Role,
		})
		c.Next()
	}
}

// CurrentActor returns the actor stored by JWTAuth.
func CurrentActor(c *gin.Context) (auth.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return auth.Actor{}, false
	}
	actor, ok := v.(auth.Actor)
	return actor, ok
}
