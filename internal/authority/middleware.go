package authority

import (
	"strings"

	"github.com/gin-gonic/gin"

	pkglog "github.com/pawhub/feedsync/pkg/log"
	"github.com/pawhub/feedsync/pkg/response"
)

const (
	userIDKey     = "user_id"
	usernameKey   = "username"
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// RequireAuth returns a Gin middleware that validates bearer tokens and
// stores the actor in the request context.
func RequireAuth(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authHeaderKey)
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := tokens.Validate(strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(usernameKey, claims.Username)
		c.Set(pkglog.FieldUserID, claims.UserID)

		c.Next()
	}
}

// actorID extracts the authenticated user id from the Gin context.
func actorID(c *gin.Context) string {
	if id, exists := c.Get(userIDKey); exists {
		return id.(string)
	}
	return ""
}
