package handlers

import (
	"github.com/rs/zerolog"

	"github.com/harentsoaR/account-api/internal/services"
)

// Handler carries what every HTTP handler needs.
type Handler struct {
	Accounts *services.AccountService
	Log      zerolog.Logger
}

func NewHandler(accounts *services.AccountService, log zerolog.Logger) *Handler {
	registerValidators()
	return &Handler{
		Accounts: accounts,
		Log:      log.With().Str("component", "http").Logger(),
	}
}
