package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, device_id, user_id, issued_at, expires_at, device_name, ip, created_at, updated_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.DeviceSession) error {
	now := time.Now().UTC().Unix()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_sessions (id, device_id, user_id, issued_at, expires_at, device_name, ip, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.DeviceID, s.UserID, s.IssuedAt.Unix(), s.ExpiresAt.Unix(), s.DeviceName, s.IP, now, now)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *sessionsRepo) GetActiveSession(
	ctx context.Context,
	deviceID string,
	issuedAt time.Time,
	userID string,
) (domain.DeviceSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions
		 WHERE device_id = ? AND issued_at = ? AND user_id = ?`,
		deviceID, issuedAt.Unix(), userID)
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByDeviceID(ctx context.Context, deviceID string) (domain.DeviceSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions WHERE device_id = ? LIMIT 1`,
		deviceID)
	return scanSession(row)
}

func (r *sessionsRepo) ListSessionsByDeviceID(ctx context.Context, deviceID string) ([]domain.DeviceSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions WHERE device_id = ?`,
		deviceID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *sessionsRepo) ListUserSessions(ctx context.Context, userID string) ([]domain.DeviceSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions
		 WHERE user_id = ? ORDER BY issued_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *sessionsRepo) RotateSession(
	ctx context.Context,
	deviceID, userID string,
	prevIssuedAt, issuedAt, expiresAt time.Time,
	ip string,
) error {
	// Single-statement compare-and-swap on the previous issued-at. Zero rows
	// means a concurrent logout or rotation won; the caller's token is dead.
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_sessions
		 SET issued_at = ?, expires_at = ?, ip = ?, updated_at = ?
		 WHERE device_id = ? AND user_id = ? AND issued_at = ?`,
		issuedAt.Unix(), expiresAt.Unix(), ip, time.Now().UTC().Unix(),
		deviceID, userID, prevIssuedAt.Unix())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, deviceID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM device_sessions WHERE device_id = ? AND user_id = ?`,
		deviceID, userID)
	return err
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM device_sessions WHERE user_id = ?`, userID)
	return err
}

func (r *sessionsRepo) DeleteOtherUserSessions(ctx context.Context, userID, currentDeviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM device_sessions WHERE user_id = ? AND device_id <> ?`,
		userID, currentDeviceID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM device_sessions WHERE expires_at <= ?`, time.Now().UTC().Unix())
	return err
}

func scanSession(row *sql.Row) (domain.DeviceSession, error) {
	var (
		s         domain.DeviceSession
		issuedAt  int64
		expiresAt int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&s.ID, &s.DeviceID, &s.UserID, &issuedAt, &expiresAt, &s.DeviceName, &s.IP, &createdAt, &updatedAt)
	if err != nil {
		return domain.DeviceSession{}, mapNotFound(err)
	}
	s.IssuedAt = unixOrZero(issuedAt)
	s.ExpiresAt = unixOrZero(expiresAt)
	s.CreatedAt = unixOrZero(createdAt)
	s.UpdatedAt = unixOrZero(updatedAt)
	return s, nil
}

func collectSessions(rows *sql.Rows) ([]domain.DeviceSession, error) {
	defer rows.Close()

	var out []domain.DeviceSession
	for rows.Next() {
		var (
			s         domain.DeviceSession
			issuedAt  int64
			expiresAt int64
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.UserID, &issuedAt, &expiresAt, &s.DeviceName, &s.IP, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.IssuedAt = unixOrZero(issuedAt)
		s.ExpiresAt = unixOrZero(expiresAt)
		s.CreatedAt = unixOrZero(createdAt)
		s.UpdatedAt = unixOrZero(updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
