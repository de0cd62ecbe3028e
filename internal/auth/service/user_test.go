package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/store"
	"github.com/lockbay/authd/internal/auth/store/drivers/sqlite"
	"github.com/lockbay/authd/pkg/cryptox"
	"github.com/lockbay/authd/pkg/idx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "authd-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestUserService(t *testing.T) (*UserService, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	return &UserService{Store: st}, st
}

func TestValidateCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	user, err := svc.CreateUser(ctx, "alice", "alice@example.com", "hunter2!")
	require.NoError(t, err)

	t.Run("matches by login", func(t *testing.T) {
		got, err := svc.ValidateCredentials(ctx, "alice", "hunter2!", "")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
	})

	t.Run("matches by email", func(t *testing.T) {
		got, err := svc.ValidateCredentials(ctx, "alice@example.com", "hunter2!", "")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
	})

	t.Run("identifier match is exact", func(t *testing.T) {
		_, err := svc.ValidateCredentials(ctx, "Alice", "hunter2!", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.ValidateCredentials(ctx, "alice", "hunter3!", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user fails the same way", func(t *testing.T) {
		_, err := svc.ValidateCredentials(ctx, "nobody", "hunter2!", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestValidateCredentialsWithTOTP(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestUserService(t)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "authd", AccountName: "frank"})
	require.NoError(t, err)
	secret := key.Secret()

	hash, err := cryptox.HashPassword("s3cret-pw")
	require.NoError(t, err)
	require.NoError(t, st.Users().CreateUser(ctx, domain.User{
		ID:           idx.New().String(),
		Login:        "frank",
		Email:        "frank@example.com",
		PasswordHash: hash,
		TOTPSecret:   &secret,
	}))

	t.Run("valid code passes", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		got, err := svc.ValidateCredentials(ctx, "frank", "s3cret-pw", code)
		require.NoError(t, err)
		require.Equal(t, "frank", got.Login)
	})

	t.Run("missing code fails", func(t *testing.T) {
		_, err := svc.ValidateCredentials(ctx, "frank", "s3cret-pw", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("bogus code fails", func(t *testing.T) {
		_, err := svc.ValidateCredentials(ctx, "frank", "s3cret-pw", "000000")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestUserService(t)

	user, err := svc.CreateUser(ctx, "grace", "grace@example.com", "pw-grace-1")
	require.NoError(t, err)
	seedSession(t, st, user.ID, time.Now())
	seedSession(t, st, user.ID, time.Now().Add(-time.Hour))

	require.NoError(t, svc.DeleteAccount(ctx, user.ID))

	_, err = st.Users().GetUserByID(ctx, user.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	sessions, err := st.Sessions().ListUserSessions(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)

	t.Run("deleting again reports the absence", func(t *testing.T) {
		require.ErrorIs(t, svc.DeleteAccount(ctx, user.ID), ErrUserNotFound)
	})
}

func TestEnsureSeedUser(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds an empty database", func(t *testing.T) {
		_, st := newTestUserService(t)
		boot := &BootstrapService{Store: st, Login: "admin", Email: "admin@example.com", Password: "bootstrap-pw"}

		require.NoError(t, boot.EnsureSeedUser(ctx))

		u, err := st.Users().GetUserByLoginOrEmail(ctx, "admin")
		require.NoError(t, err)
		require.NoError(t, cryptox.VerifyPassword("bootstrap-pw", u.PasswordHash))
	})

	t.Run("generates a password when none configured", func(t *testing.T) {
		_, st := newTestUserService(t)
		boot := &BootstrapService{Store: st, Login: "admin", Email: "admin@example.com"}

		require.NoError(t, boot.EnsureSeedUser(ctx))

		u, err := st.Users().GetUserByLoginOrEmail(ctx, "admin")
		require.NoError(t, err)
		require.NotEmpty(t, u.PasswordHash)
	})

	t.Run("no-op on a populated database", func(t *testing.T) {
		svc, st := newTestUserService(t)
		_, err := svc.CreateUser(ctx, "existing", "existing@example.com", "pw-existing")
		require.NoError(t, err)

		boot := &BootstrapService{Store: st, Login: "admin", Email: "admin@example.com", Password: "bootstrap-pw"}
		require.NoError(t, boot.EnsureSeedUser(ctx))

		_, err = st.Users().GetUserByLoginOrEmail(ctx, "admin")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestHousekeepingSweepsExpiredSessions(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestUserService(t)

	user, err := svc.CreateUser(ctx, "heidi", "heidi@example.com", "pw-heidi-1")
	require.NoError(t, err)

	live := seedSession(t, st, user.ID, time.Now())
	expired := seedSession(t, st, user.ID, time.Now().Add(-30*24*time.Hour))

	hk := NewHousekeepingService(st, slogDiscard(), time.Hour)
	hk.Start()
	hk.Stop()

	_, err = st.Sessions().GetSessionByDeviceID(ctx, live.DeviceID)
	require.NoError(t, err)
	_, err = st.Sessions().GetSessionByDeviceID(ctx, expired.DeviceID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
