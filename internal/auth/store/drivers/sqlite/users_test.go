package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/lockbay/authd/internal/auth/store"
	"github.com/stretchr/testify/require"
)

func TestGetUserByLoginOrEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "alice")

	t.Run("matches by login", func(t *testing.T) {
		got, err := s.Users().GetUserByLoginOrEmail(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("matches by email", func(t *testing.T) {
		got, err := s.Users().GetUserByLoginOrEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("matching is case-sensitive", func(t *testing.T) {
		_, err := s.Users().GetUserByLoginOrEmail(ctx, "Alice")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := s.Users().GetUserByLoginOrEmail(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "alice")

	dup := u
	dup.ID = "different-id"
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
}

func TestUsersIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	seedUser(t, s, "alice")

	empty, err = s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestDeleteUserCascadesToSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "alice")

	iat := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Sessions().CreateSession(ctx, newSession(u.ID, "device-1", iat)))

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))

	_, err := s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	left, err := s.Sessions().ListUserSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, left)
}
