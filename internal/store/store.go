// Package store is the persistence accessor for accounts. Every backend
// exposes the same Store contract and the same sentinel errors so the
// account service never sees driver types.
package store

import (
	"context"
	"errors"

	"github.com/harentsoaR/account-api/internal/models"
)

var (
	// ErrNotFound signals that no account matched.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate signals a uniqueness conflict on email or CIN.
	ErrDuplicate = errors.New("store: duplicate account")
	// ErrUnavailable signals that the backing store could not be reached.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store persists accounts.
type Store interface {
	// ExistsByEmailOrCIN reports whether any account uses email or cin.
	ExistsByEmailOrCIN(ctx context.Context, email, cin string) (bool, error)
	// EmailTakenByOther reports whether an account other than id uses email.
	EmailTakenByOther(ctx context.Context, email string, id int64) (bool, error)
	// Insert stores u and returns the generated identifier.
	Insert(ctx context.Context, u *models.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	// Update overwrites the mutable fields of account id. Updating a missing
	// id is not an error.
	Update(ctx context.Context, id int64, upd models.UserUpdate) error
	// UpdatePassword replaces only the password hash of account id.
	UpdatePassword(ctx context.Context, id int64, hash string) error
	// Delete removes account id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
