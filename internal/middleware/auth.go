package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"todo-sync/internal/session"
)

// AuthMiddleware validates the bearer token on routes that require a
// signed-in user and stores the user id in the request context.
func AuthMiddleware(tokens *session.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := tokens.Parse(tokenStr)
		if err != nil {
			if errors.Is(err, session.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "expired_token",
					"message": "Token has expired",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// OptionalAuth parses the bearer token when present but never rejects the
// request. Anonymous requests run against the local store only.
func OptionalAuth(tokens *session.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			if userID, err := tokens.Parse(strings.TrimPrefix(authHeader, "Bearer ")); err == nil {
				c.Set("user_id", userID)
			}
		}
		c.Next()
	}
}
