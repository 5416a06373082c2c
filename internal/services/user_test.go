package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/auth"
	"github.com/tasktrack/apiserver/internal/notify"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

type mailerMock struct {
	mock.Mock
}

func (m *mailerMock) SendTemporaryPassword(ctx context.Context, email, username, password string) error {
	args := m.Called(ctx, email, username, password)
	return args.Error(0)
}

func newUserService(t *testing.T) (*UserService, *mailerMock, *store.MemoryUserRepository) {
	t.Helper()

	users := store.NewMemory().Users()
	mailer := &mailerMock{}
	svc := NewUserService(users, &auth.BcryptHasher{Cost: bcrypt.MinCost}, mailer, nil)
	return svc, mailer, users
}

func registerAlice(t *testing.T, svc *UserService) types.User {
	t.Helper()

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newUserService(t)

	user, err := svc.Register(ctx, " alice ", " Alice@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "password123", user.PasswordHash)

	stored, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)

	_, err = svc.Register(ctx, "other", "alice@example.com", "pw")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newUserService(t)

	tests := []struct {
		name                      string
		username, email, password string
		want                      error
	}{
		{"missing username", "", "a@example.com", "pw", ErrInvalidUser},
		{"missing email", "a", "  ", "pw", ErrInvalidUser},
		{"missing password", "a", "a@example.com", "", ErrInvalidUser},
		{"malformed email", "a", "not-an-email", "pw", ErrInvalidEmail},
		{"display name", "a", "Alice <a@example.com>", "pw", ErrInvalidEmail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.username, tc.email, tc.password)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserService(t)
	alice := registerAlice(t, svc)

	user, err := svc.Authenticate(ctx, "ALICE@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserService(t)
	alice := registerAlice(t, svc)

	assert.ErrorIs(t, svc.ChangePassword(ctx, alice.ID, "wrong", "new", "new"), ErrWrongPassword)
	assert.ErrorIs(t, svc.ChangePassword(ctx, alice.ID, "password123", "new", "other"), ErrPasswordMismatch)
	assert.ErrorIs(t, svc.ChangePassword(ctx, alice.ID, "password123", "", ""), ErrWeakPassword)
	assert.ErrorIs(t, svc.ChangePassword(ctx, 999, "password123", "new", "new"), store.ErrNotFound)

	require.NoError(t, svc.ChangePassword(ctx, alice.ID, "password123", "new-secret", "new-secret"))

	_, err := svc.Authenticate(ctx, alice.Email, "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, alice.Email, "new-secret")
	assert.NoError(t, err)
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()
	svc, mailer, _ := newUserService(t)
	alice := registerAlice(t, svc)
	svc.tempPassword = func() (string, error) { return "Tmp!pass42", nil }

	mailer.On("SendTemporaryPassword", mock.Anything, alice.Email, alice.Username, "Tmp!pass42").Return(nil).Once()

	require.NoError(t, svc.ForgotPassword(ctx, "Alice@example.com"))
	mailer.AssertExpectations(t)

	_, err := svc.Authenticate(ctx, alice.Email, "Tmp!pass42")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, alice.Email, "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, mailer, _ := newUserService(t)

	err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	mailer.AssertNotCalled(t, "SendTemporaryPassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestForgotPasswordMailFailureKeepsNewHash(t *testing.T) {
	ctx := context.Background()
	svc, mailer, _ := newUserService(t)
	alice := registerAlice(t, svc)
	svc.tempPassword = func() (string, error) { return "Tmp!pass42", nil }

	mailer.On("SendTemporaryPassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp unavailable")).Once()

	err := svc.ForgotPassword(ctx, alice.Email)
	require.ErrorIs(t, err, ErrNotificationFailed)

	_, err = svc.Authenticate(ctx, alice.Email, "Tmp!pass42")
	assert.NoError(t, err)
}

func TestForgotPasswordWithoutSMTPKeepsPassword(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemory().Users()
	svc := NewUserService(users, &auth.BcryptHasher{Cost: bcrypt.MinCost}, notify.New(config.SMTPConfig{}, nil), nil)
	alice := registerAlice(t, svc)

	err := svc.ForgotPassword(ctx, alice.Email)
	require.ErrorIs(t, err, ErrNotificationFailed)
	assert.ErrorIs(t, err, ErrMailerUnavailable)

	_, err = svc.Authenticate(ctx, alice.Email, "password123")
	assert.NoError(t, err)
}

func TestForgotPasswordNilMailer(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(store.NewMemory().Users(), &auth.BcryptHasher{Cost: bcrypt.MinCost}, nil, nil)
	alice := registerAlice(t, svc)

	err := svc.ForgotPassword(ctx, alice.Email)
	assert.ErrorIs(t, err, ErrNotificationFailed)
}
