package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/account-api/internal/models"
	"github.com/harentsoaR/account-api/internal/store"
	"github.com/harentsoaR/account-api/internal/utils"
)

var (
	// ErrInvalidCredentials signals an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrDuplicateAccount signals that the email or CIN is already in use.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrPasswordTooLong signals a password bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password longer than 72 bytes")
)

const publishTimeout = 2 * time.Second

// AccountOptions tunes hashing and session issuance.
type AccountOptions struct {
	BcryptCost int
	JWTSecret  []byte
	SessionTTL time.Duration
}

// AccountService implements signup, login, profile update and account removal.
type AccountService struct {
	store    store.Store
	sessions SessionStore
	events   EventPublisher
	log      zerolog.Logger
	opts     AccountOptions
}

func NewAccountService(st store.Store, sessions SessionStore, events EventPublisher, log zerolog.Logger, opts AccountOptions) *AccountService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &AccountService{
		store:    st,
		sessions: sessions,
		events:   events,
		log:      log.With().Str("component", "accounts").Logger(),
		opts:     opts,
	}
}

type CreateAccountInput struct {
	FirstName   string
	LastName    string
	CIN         string
	Email       string
	PhoneNumber string
	Password    string
}

type UpdateAccountInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	// Password replaces the stored one when non-nil and non-empty.
	Password *string
}

// LoginResult bundles the session token and the account it was issued for.
type LoginResult struct {
	Token string
	User  *models.User
}

// Create registers a new account and returns its id. An existing account
// with the same email or CIN fails with ErrDuplicateAccount.
func (s *AccountService) Create(ctx context.Context, in CreateAccountInput) (int64, error) {
	exists, err := s.store.ExistsByEmailOrCIN(ctx, in.Email, in.CIN)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrDuplicateAccount
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return 0, err
	}

	id, err := s.store.Insert(ctx, &models.User{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CIN:         in.CIN,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Password:    hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, ErrDuplicateAccount
		}
		return 0, err
	}
	s.log.Info().Int64("userId", id).Msg("account created")

	s.publish(ctx, models.EventAccountCreated, id, in.Email)
	return id, nil
}

// Authenticate verifies the credentials and opens a session.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if utils.PasswordNeedsRehash(user.Password, s.opts.BcryptCost) {
		s.rehash(ctx, user, password)
	}

	sid, err := s.sessions.Create(ctx, user.ID, s.opts.SessionTTL)
	if err != nil {
		return nil, err
	}
	token, err := utils.GenerateJWT(s.opts.JWTSecret, user.ID, sid, s.opts.SessionTTL)
	if err != nil {
		_ = s.sessions.Revoke(ctx, sid)
		return nil, fmt.Errorf("accounts: generate token: %w", err)
	}
	s.log.Info().Int64("userId", user.ID).Msg("session opened")

	return &LoginResult{Token: token, User: user}, nil
}

// VerifyToken checks the token signature and that its session is still
// live and belongs to the account named in the token.
func (s *AccountService) VerifyToken(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := utils.ValidateJWT(s.opts.JWTSecret, token)
	if err != nil {
		return nil, err
	}
	userID, err := s.sessions.Lookup(ctx, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if userID != claims.UserID {
		return nil, ErrSessionNotFound
	}
	return claims, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetByID(ctx, id)
}

// Update overwrites the mutable fields of account id and returns the stored
// record. The email must not belong to another account.
func (s *AccountService) Update(ctx context.Context, id int64, in UpdateAccountInput) (*models.User, error) {
	taken, err := s.store.EmailTakenByOther(ctx, in.Email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateAccount
	}

	upd := models.UserUpdate{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	if err := s.store.Update(ctx, id, upd); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("userId", id).Bool("passwordChanged", upd.PasswordHash != nil).Msg("account updated")

	s.publish(ctx, models.EventAccountUpdated, id, user.Email)
	return user, nil
}

// Delete removes account id and ends all its sessions. Removing an id that
// does not exist succeeds.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, id); err != nil {
		s.log.Error().Err(err).Int64("userId", id).Msg("revoke sessions after delete")
	}
	s.log.Info().Int64("userId", id).Msg("account deleted")

	s.publish(ctx, models.EventAccountDeleted, id, "")
	return nil
}

// Logout ends one session.
func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}

func (s *AccountService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *AccountService) hashPassword(password string) (string, error) {
	hash, err := utils.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("accounts: hash password: %w", err)
	}
	return hash, nil
}

// rehash upgrades a stored hash to the configured cost. Failures keep the
// old hash, which still verifies.
func (s *AccountService) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := utils.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		s.log.Error().Err(err).Int64("userId", user.ID).Msg("rehash password")
		return
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.log.Error().Err(err).Int64("userId", user.ID).Msg("store rehashed password")
		return
	}
	user.Password = hash
}

func (s *AccountService) publish(ctx context.Context, typ string, id int64, email string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	evt := models.AccountEvent{Type: typ, UserID: id, Email: email, OccurredAt: time.Now().UTC()}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Error().Err(err).Str("event", typ).Int64("userId", id).Msg("publish account event")
	}
}
