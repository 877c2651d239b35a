package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) SignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", gin.H{"Title": "Sign up", "Page": "signup"})
}

func (h *Handler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Title": "Login", "Page": "login"})
}

// ProfilePage is served to anyone; the script redirects to /login when the
// browser holds no session.
func (h *Handler) ProfilePage(c *gin.Context) {
	c.HTML(http.StatusOK, "profile.html", gin.H{"Title": "Profile", "Page": "profile"})
}
