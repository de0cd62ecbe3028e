package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, login, email, password_hash, totp_secret, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByLoginOrEmail(ctx context.Context, loginOrEmail string) (domain.User, error) {
	// Case-sensitive exact match on either column, same as the original
	// system's contract.
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = ? OR email = ?`,
		loginOrEmail, loginOrEmail)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC().Unix()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, login, email, password_hash, totp_secret, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Login, u.Email, u.PasswordHash, optionalString(u.TOTPSecret), now, now)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u          domain.User
		totpSecret sql.NullString
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(&u.ID, &u.Login, &u.Email, &u.PasswordHash, &totpSecret, &createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if totpSecret.Valid {
		u.TOTPSecret = &totpSecret.String
	}
	u.CreatedAt = unixOrZero(createdAt)
	u.UpdatedAt = unixOrZero(updatedAt)
	return u, nil
}

func optionalString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
