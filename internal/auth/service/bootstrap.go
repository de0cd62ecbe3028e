package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/store"
	"github.com/lockbay/authd/pkg/cryptox"
	"github.com/lockbay/authd/pkg/idx"
	"github.com/lockbay/authd/pkg/slogx"
)

var ErrBootstrapFailed = errors.New("failed to seed initial user")

// BootstrapService seeds the first user on an empty database so a fresh
// deployment has something to log in with. Login and Email come from config;
// Password may be empty, in which case one is generated and logged exactly
// once at startup.
type BootstrapService struct {
	Store    store.Store
	Login    string
	Email    string
	Password string
}

// EnsureSeedUser creates the configured initial user when the users table is
// empty. On an already-populated database it does nothing.
func (s *BootstrapService) EnsureSeedUser(ctx context.Context) error {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}

	password := s.Password
	generated := false
	if password == "" {
		password, err = cryptox.GeneratePassword()
		if err != nil {
			l.Error("failed to generate seed user password", slog.Any("error", err))
			return ErrBootstrapFailed
		}
		generated = true
	}

	passHash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Error("failed to hash seed user password", slog.Any("error", err))
		return ErrBootstrapFailed
	}

	userID := idx.New().String()
	err = s.Store.Users().CreateUser(ctx, domain.User{
		ID:           userID,
		Login:        s.Login,
		Email:        s.Email,
		PasswordHash: passHash,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Another replica seeded first; nothing to do.
			return nil
		}
		l.Error("failed to create seed user",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return ErrBootstrapFailed
	}

	if generated {
		// The only place this password is ever visible. It is not stored
		// anywhere in recoverable form.
		l.Info("seeded initial user with generated password",
			slog.String("login", s.Login),
			slog.String("password", password),
		)
	} else {
		l.Info("seeded initial user", slog.String("login", s.Login))
	}
	return nil
}
