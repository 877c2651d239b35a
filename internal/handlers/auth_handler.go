// internal/handlers/auth_handler.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/account-api/internal/middleware"
	"github.com/harentsoaR/account-api/internal/services"
)

// Login is a METHOD of the Handler struct.
func (h *Handler) Login(c *gin.Context) {
	var loginReq struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.Log.Debug().Msg("Login: attempting to authenticate")
	res, err := h.Accounts.Authenticate(c.Request.Context(), loginReq.Email, loginReq.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.Log.Error().Err(err).Msg("Login: authentication failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	// the password hash is tagged json:"-" on models.User
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    res.User,
		"token":   res.Token,
	})
}

// Logout ends the session the request was authenticated with.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Accounts.Logout(c.Request.Context(), c.GetString(middleware.ContextSessionID)); err != nil {
		h.Log.Error().Err(err).Msg("Logout: revoke session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
