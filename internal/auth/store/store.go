package store

import (
	"context"
	"errors"
	"time"

	"github.com/lockbay/authd/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and let services
// depend only on what they touch.
type Store interface {
	Users() Users
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise. Use it for multi-step operations that
	// must be atomic (e.g. account deletion cascade).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByLoginOrEmail matches login OR email with case-sensitive
	// exact equality.
	GetUserByLoginOrEmail(ctx context.Context, loginOrEmail string) (domain.User, error)

	// CreateUser inserts a new user (bootstrap seeding only; profile
	// lifecycle is owned elsewhere).
	CreateUser(ctx context.Context, u domain.User) error

	// DeleteUser removes the user row. Session cleanup is the caller's
	// responsibility, inside the same transaction.
	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	// CreateSession inserts a new device session. Returns ErrAlreadyExists
	// when a row for (user_id, device_id) is present; the schema enforces
	// this, not just UUID luck.
	CreateSession(ctx context.Context, s domain.DeviceSession) error

	// GetActiveSession is the refresh-validation lookup: all three of
	// device id, issued-at, and user id must match exactly.
	GetActiveSession(ctx context.Context, deviceID string, issuedAt time.Time, userID string) (domain.DeviceSession, error)

	// GetSessionByDeviceID returns the session for a device regardless of
	// owner, for termination ownership checks.
	GetSessionByDeviceID(ctx context.Context, deviceID string) (domain.DeviceSession, error)

	// ListSessionsByDeviceID returns every row for a device id. Uniqueness
	// is the steady state, but ownership checks during races must see all
	// rows rather than assume it.
	ListSessionsByDeviceID(ctx context.Context, deviceID string) ([]domain.DeviceSession, error)

	// ListUserSessions returns all sessions for a user, newest activity
	// first.
	ListUserSessions(ctx context.Context, userID string) ([]domain.DeviceSession, error)

	// RotateSession re-stamps issued-at, expiry, and ip on the row matching
	// (deviceID, userID, prevIssuedAt) in a single UPDATE. Returns
	// ErrNotFound when no row matched: either a concurrent logout removed
	// it or a concurrent rotation already moved issued-at on.
	RotateSession(ctx context.Context, deviceID, userID string, prevIssuedAt, issuedAt, expiresAt time.Time, ip string) error

	// DeleteSession removes the row for (deviceID, userID). Deleting an
	// absent row is not an error.
	DeleteSession(ctx context.Context, deviceID, userID string) error

	// DeleteUserSessions removes every session for the user. Idempotent.
	DeleteUserSessions(ctx context.Context, userID string) error

	// DeleteOtherUserSessions removes every session for the user except the
	// one for currentDeviceID, in a single statement.
	DeleteOtherUserSessions(ctx context.Context, userID, currentDeviceID string) error

	// DeleteExpiredSessions is housekeeping for rows past their expiry.
	DeleteExpiredSessions(ctx context.Context) error
}
