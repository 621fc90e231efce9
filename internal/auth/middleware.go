package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"liveroom/internal/domain"
)

const identityKey = "userId"

// Middleware authenticates the bearer token and stashes the resolved user id
// for handlers. Everything behind it can treat the caller as already trusted.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, err := s.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, string(userID))
		c.Next()
	}
}

// CallerID returns the authenticated user set by Middleware.
func CallerID(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(identityKey))
}
