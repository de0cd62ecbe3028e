package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/store"
	"github.com/lockbay/authd/pkg/idx"
	"github.com/lockbay/authd/pkg/jwtx"
	"github.com/lockbay/authd/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrSessionForbidden   = errors.New("session_forbidden")
	ErrDeviceNotFound     = errors.New("device_not_found")
	ErrUserNotFound       = errors.New("user_not_found")
)

// SessionService owns the device-session state machine: token issuance on
// login, rotation on refresh, and the termination paths. Sessions move
// absent → active → (rotated → active)* → absent; rotation never changes
// state, it re-stamps iat/exp/ip on the same row.
type SessionService struct {
	Codec *jwtx.Codec
	Store store.Store
}

// Login mints a brand new device session. No prior state is consulted:
// logging in twice from the same browser yields two independent sessions,
// each its own "device" as far as rotation and termination are concerned.
func (s *SessionService) Login(ctx context.Context, userID, deviceName, ip string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	deviceID := uuid.NewString()

	accessToken, err := s.Codec.SignAccess(userID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.Codec.SignRefresh(userID, deviceID)
	if err != nil {
		return nil, err
	}

	// Recover the iat/exp the codec just stamped rather than reading the
	// clock again; the session row must mirror the token's claims exactly.
	claims, err := s.Codec.DecodeRefreshUnverified(refreshToken)
	if err != nil {
		return nil, err
	}

	if deviceName == "" {
		deviceName = "unknown"
	}

	session := domain.DeviceSession{
		ID:         idx.New().String(),
		DeviceID:   deviceID,
		UserID:     userID,
		IssuedAt:   claims.IssuedAt(),
		ExpiresAt:  claims.ExpiresAt(),
		DeviceName: deviceName,
		IP:         ip,
	}
	if err := s.Store.Sessions().CreateSession(ctx, session); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// A fresh UUID colliding with an existing row is a bug or a
			// duplicate insert race, not a user error.
			l.Error("device session collision on login", "user_id", userID, "device_id", deviceID)
		}
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        s.Codec.AccessTTL,
		RefreshExpiresAt: claims.ExpiresAt(),
	}, nil
}

// Refresh rotates the caller's session: a fresh access+refresh pair for the
// same (user, device), with the row's iat/exp/ip moved to the new token's
// claims. The caller has already been authenticated by the refresh guard;
// sess carries the validated identity including the old iat, which the
// rotation matches atomically so that of two racing refreshes exactly one
// wins.
func (s *SessionService) Refresh(ctx context.Context, sess domain.SessionContext, ip string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	accessToken, err := s.Codec.SignAccess(sess.UserID)
	if err != nil {
		return nil, err
	}

	// The wire iat is whole seconds. A rotation landing in the same second
	// as the previous issuance must still move the row's issued-at forward,
	// or the superseded token would keep matching the triple lookup.
	issuedAt := time.Now().UTC().Truncate(time.Second)
	if !issuedAt.After(sess.IssuedAt) {
		issuedAt = sess.IssuedAt.Add(time.Second)
	}

	refreshToken, err := s.Codec.SignRefreshAt(sess.UserID, sess.DeviceID, issuedAt)
	if err != nil {
		return nil, err
	}
	claims, err := s.Codec.DecodeRefreshUnverified(refreshToken)
	if err != nil {
		return nil, err
	}

	err = s.Store.Sessions().RotateSession(ctx,
		sess.DeviceID, sess.UserID,
		sess.IssuedAt, claims.IssuedAt(), claims.ExpiresAt(), ip)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The row vanished or moved on between guard validation and the
			// update: a logout or a second refresh raced us. Reported, not
			// masked — the loser's tokens must not resurrect the session.
			l.Warn("session rotation lost race", "user_id", sess.UserID, "device_id", sess.DeviceID)
			return nil, ErrSessionRevoked
		}
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        s.Codec.AccessTTL,
		RefreshExpiresAt: claims.ExpiresAt(),
	}, nil
}

// Logout deletes the caller's session row. Idempotent: the guard already
// required a valid refresh token to get here, so the row should exist, but
// a concurrent double-logout must not surface as an error.
func (s *SessionService) Logout(ctx context.Context, deviceID, userID string) error {
	return s.Store.Sessions().DeleteSession(ctx, deviceID, userID)
}

// TerminateDeviceSession removes one device's session on behalf of
// currentUserID. A device with no rows at all is ErrDeviceNotFound; a device
// owned entirely by someone else is ErrSessionForbidden — the caller learns
// the device exists but nothing more.
func (s *SessionService) TerminateDeviceSession(ctx context.Context, deviceID, currentUserID string) error {
	sessions, err := s.Store.Sessions().ListSessionsByDeviceID(ctx, deviceID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return ErrDeviceNotFound
	}

	owned := false
	for _, sess := range sessions {
		if sess.UserID == currentUserID {
			owned = true
			break
		}
	}
	if !owned {
		return ErrSessionForbidden
	}

	return s.Store.Sessions().DeleteSession(ctx, deviceID, currentUserID)
}

// TerminateOtherSessions deletes every session of the user except the one
// the caller is currently on, in a single atomic statement.
func (s *SessionService) TerminateOtherSessions(ctx context.Context, userID, currentDeviceID string) error {
	return s.Store.Sessions().DeleteOtherUserSessions(ctx, userID, currentDeviceID)
}

// RevokeAllForUser is the account-deletion cascade hook: it removes every
// session for the user and is a no-op when none exist. The user-management
// collaborator must call it before dropping the user record.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.Sessions().DeleteUserSessions(ctx, userID)
}

// SessionFromRefreshClaims is the refresh-guard read path: the token is
// valid only if a row matches its (deviceId, iat, userId) triple exactly.
// A miss means the token was already rotated away, terminated, or never
// existed — all indistinguishable to the caller.
func (s *SessionService) SessionFromRefreshClaims(ctx context.Context, claims jwtx.RefreshClaims) (domain.SessionContext, error) {
	sess, err := s.Store.Sessions().GetActiveSession(ctx, claims.DeviceID, claims.IssuedAt(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SessionContext{}, ErrSessionNotFound
		}
		return domain.SessionContext{}, err
	}
	return domain.SessionContext{
		UserID:   sess.UserID,
		DeviceID: sess.DeviceID,
		IssuedAt: sess.IssuedAt,
	}, nil
}

// UserFromAccessClaims is the access-guard read path: an existence check so
// that a deleted user's still-unexpired access tokens stop working.
func (s *SessionService) UserFromAccessClaims(ctx context.Context, claims jwtx.AccessClaims) (string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return u.ID, nil
}

// ListDevices is the "my devices" view over the user's active sessions.
func (s *SessionService) ListDevices(ctx context.Context, userID string) ([]domain.DeviceView, error) {
	sessions, err := s.Store.Sessions().ListUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.DeviceView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, domain.DeviceView{
			DeviceID:       sess.DeviceID,
			Title:          sess.DeviceName,
			IP:             sess.IP,
			LastActiveDate: sess.IssuedAt,
		})
	}
	return views, nil
}
