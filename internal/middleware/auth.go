package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/account-api/internal/utils"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID    = "userID"
	ContextSessionID = "sessionID"
)

// TokenVerifier resolves a bearer token to its live session claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*utils.Claims, error)
}

func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := verifier.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		// Set session info in the context for handlers to use
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextSessionID, claims.SessionID())

		c.Next()
	}
}
