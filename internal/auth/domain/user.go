package domain

import "time"

// User is the identity record this core reads for credential and existence
// checks. Profile lifecycle belongs to the user-management collaborator; the
// auth core only creates the bootstrap user and deletes on account removal.
type User struct {
	ID           string
	Login        string
	Email        string
	PasswordHash string  // argon2id encoded
	TOTPSecret   *string // base32 TOTP secret (nullable; set means 2FA required)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TOTPEnabled reports whether login requires a one-time code.
func (u User) TOTPEnabled() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}
