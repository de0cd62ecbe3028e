package service

import (
	"context"
	"errors"

	"github.com/pquerna/otp/totp"

	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/store"
	"github.com/lockbay/authd/pkg/cryptox"
	"github.com/lockbay/authd/pkg/idx"
)

// UserService verifies credentials and owns the user lifecycle operations
// that the session layer depends on.
type UserService struct {
	Store store.Store
}

// ValidateCredentials resolves loginOrEmail against both the login and
// email columns (exact, case-sensitive match) and checks the password, plus
// the TOTP code when the account has a second factor enrolled. Every failure
// mode returns the same ErrInvalidCredentials; an unknown identifier still
// burns a full hash verification so response timing does not leak whether
// the account exists.
func (s *UserService) ValidateCredentials(ctx context.Context, loginOrEmail, password, otpCode string) (*domain.User, error) {
	user, err := s.Store.Users().GetUserByLoginOrEmail(ctx, loginOrEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.DummyVerify(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.TOTPEnabled() {
		if otpCode == "" || !totp.Validate(otpCode, *user.TOTPSecret) {
			return nil, ErrInvalidCredentials
		}
	}

	return &user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DeleteAccount removes the user and every one of their device sessions in
// one transaction, so no session row can outlive its user even briefly.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().DeleteUserSessions(ctx, userID); err != nil {
			return err
		}
		if err := tx.Users().DeleteUser(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
}

// CreateUser hashes the password and stores the new account. Login and
// email collisions surface as store.ErrAlreadyExists.
func (s *UserService) CreateUser(ctx context.Context, login, email, password string) (*domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Login:        login,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}
