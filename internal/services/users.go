// Package services implements the user directory and the message ledger on
// top of the repositories. Errors returned to handlers are *common.Error
// where the failure is the client's.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messagely/internal/common"
	"messagely/internal/models"
	"messagely/internal/utils"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	PasswordHash(ctx context.Context, username string) (string, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	List(ctx context.Context) ([]models.UserSummary, error)
	Get(ctx context.Context, username string) (*models.User, error)
	MessagesFrom(ctx context.Context, username string) ([]models.SentMessage, error)
	MessagesTo(ctx context.Context, username string) ([]models.ReceivedMessage, error)
}

type RegisterInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (in RegisterInput) validate() error {
	if in.Username == "" || in.Password == "" {
		return common.ValidationError("Username and password required.")
	}
	if in.FirstName == "" || in.LastName == "" {
		return common.ValidationError("First and last name required.")
	}
	if in.Phone == "" {
		return common.ValidationError("Phone number required.")
	}
	return nil
}

type UserService struct {
	store      UserStore
	bcryptCost int
	now        func() time.Time
}

func NewUserService(store UserStore, bcryptCost int) *UserService {
	return &UserService{store: store, bcryptCost: bcryptCost, now: utcNow}
}

// Register hashes the password and stores a new user. The returned user
// never carries the hash.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u, err := s.store.Create(ctx, &models.User{
		Username:    in.Username,
		Password:    hash,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Phone:       in.Phone,
		JoinAt:      now,
		LastLoginAt: &now,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return nil, common.ConflictError("Username taken. Please pick another.")
		}
		return nil, err
	}
	u.Password = ""
	return u, nil
}

// Authenticate reports whether password matches the stored hash. An unknown
// username is an AuthError rather than false.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	hash, err := s.store.PasswordHash(ctx, username)
	if err != nil {
		return false, notFoundAsAuth(err, username)
	}
	return utils.CheckPassword(password, hash), nil
}

func (s *UserService) UpdateLoginTimestamp(ctx context.Context, username string) error {
	if err := s.store.UpdateLastLogin(ctx, username, s.now()); err != nil {
		return notFoundAsAuth(err, username)
	}
	return nil
}

func (s *UserService) All(ctx context.Context) ([]models.UserSummary, error) {
	return s.store.List(ctx)
}

func (s *UserService) Get(ctx context.Context, username string) (*models.User, error) {
	u, err := s.store.Get(ctx, username)
	if err != nil {
		return nil, notFoundAsAuth(err, username)
	}
	return u, nil
}

// MessagesFrom returns every message sent by username. Order is unspecified.
func (s *UserService) MessagesFrom(ctx context.Context, username string) ([]models.SentMessage, error) {
	return s.store.MessagesFrom(ctx, username)
}

// MessagesTo returns every message received by username. Order is unspecified.
func (s *UserService) MessagesTo(ctx context.Context, username string) ([]models.ReceivedMessage, error) {
	return s.store.MessagesTo(ctx, username)
}

// notFoundAsAuth reports a missing user as an auth failure so callers
// cannot probe which usernames exist.
func notFoundAsAuth(err error, username string) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.AuthError(fmt.Sprintf("Unable to find user with username: %s", username))
	}
	return err
}

// utcNow matches the DATETIME(6) column precision so stored and returned
// times compare equal.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
