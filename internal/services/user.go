package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/tasktrack/apiserver/internal/auth"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

var (
	ErrInvalidUser        = errors.New("username, email and password are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongPassword      = errors.New("old password is incorrect")
	ErrPasswordMismatch   = errors.New("new password and confirm password do not match")
	ErrWeakPassword       = errors.New("new password must not be empty")
	ErrNotificationFailed = errors.New("failed to send notification")
	ErrMailerUnavailable  = errors.New("no mailer configured")
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

type Mailer interface {
	SendTemporaryPassword(ctx context.Context, email, username, password string) error
}

// mailerStatus is implemented by mailers that know whether they can deliver.
type mailerStatus interface {
	Configured() bool
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo         UserRepository
	hasher       PasswordHasher
	mailer       Mailer
	logger       *slog.Logger
	tempPassword func() (string, error)
}

func NewUserService(repo UserRepository, hasher PasswordHasher, mailer Mailer, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		repo:         repo,
		hasher:       hasher,
		mailer:       mailer,
		logger:       logger,
		tempPassword: auth.TempPassword,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	email = types.NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return types.User{}, ErrInvalidUser
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return types.User{}, ErrInvalidEmail
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, err
	}
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return types.User{}, err
	}
	if !ok {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, confirmPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(user.PasswordHash, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongPassword
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if newPassword == "" {
		return ErrWeakPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, user.ID, hash)
}

// ForgotPassword replaces the password of the account registered under email
// with a random one and emails it. The new hash is stored before sending, so
// a failed email leaves the account with a password nobody knows. Without a
// mailer that can deliver, the stored password is left untouched.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if !s.canMail() {
		s.logger.ErrorContext(ctx, "password reset refused, no mailer configured", slog.Int64("user_id", user.ID))
		return fmt.Errorf("%w: %w", ErrNotificationFailed, ErrMailerUnavailable)
	}

	password, err := s.tempPassword()
	if err != nil {
		return fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if err := s.mailer.SendTemporaryPassword(ctx, user.Email, user.Username, password); err != nil {
		s.logger.ErrorContext(ctx, "temporary password email failed",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

func (s *UserService) canMail() bool {
	if s.mailer == nil {
		return false
	}
	if status, ok := s.mailer.(mailerStatus); ok {
		return status.Configured()
	}
	return true
}
