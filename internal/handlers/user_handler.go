package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/account-api/internal/middleware"
	"github.com/harentsoaR/account-api/internal/services"
	"github.com/harentsoaR/account-api/internal/store"
)

type CreateUserRequest struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	CIN         string `json:"cin" binding:"required,len=8,digits"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phoneNumber" binding:"required,len=8,digits"`
	Password    string `json:"password" binding:"required,max=72"`
}

type UpdateUserRequest struct {
	FirstName   string  `json:"firstName" binding:"required"`
	LastName    string  `json:"lastName" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	PhoneNumber string  `json:"phoneNumber" binding:"required,len=8,digits"`
	Password    *string `json:"password" binding:"omitempty,max=72"` // omitted or empty keeps the current one
}

// CreateUser registers a new account.
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	h.Log.Debug().Str("email", req.Email).Msg("CreateUser: attempting to create account")
	id, err := h.Accounts.Create(c.Request.Context(), services.CreateAccountInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CIN:         req.CIN,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateAccount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email or CIN already exists"})
		case errors.Is(err, services.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": passwordTooLongMessage})
		case errors.Is(err, store.ErrUnavailable):
			h.Log.Error().Err(err).Msg("CreateUser: store unavailable")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database connection failed"})
		default:
			h.Log.Error().Err(err).Msg("CreateUser: store failure")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User created successfully",
		"userId":  id,
	})
}

// GetUser returns the caller's own profile.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := h.ownAccountID(c)
	if !ok {
		return
	}

	user, err := h.Accounts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.Log.Error().Err(err).Int64("userId", id).Msg("GetUser: store failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User retrieved successfully", "user": user})
}

// UpdateUser overwrites the caller's profile and ends the current session,
// so the client has to log in again.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := h.ownAccountID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Accounts.Update(ctx, id, services.UpdateAccountInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateAccount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already exists"})
		case errors.Is(err, services.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": passwordTooLongMessage})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			h.Log.Error().Err(err).Int64("userId", id).Msg("UpdateUser: store failure")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		}
		return
	}

	if err := h.Accounts.Logout(ctx, c.GetString(middleware.ContextSessionID)); err != nil {
		h.Log.Error().Err(err).Int64("userId", id).Msg("UpdateUser: revoke session")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    user,
	})
}

// DeleteUser removes the caller's account.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := h.ownAccountID(c)
	if !ok {
		return
	}

	if err := h.Accounts.Delete(c.Request.Context(), id); err != nil {
		h.Log.Error().Err(err).Int64("userId", id).Msg("DeleteUser: store failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// ownAccountID parses the :id path parameter and checks that it names the
// account of the authenticated session.
func (h *Handler) ownAccountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	if id != c.GetInt64(middleware.ContextUserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only manage your own account"})
		return 0, false
	}
	return id, true
}
