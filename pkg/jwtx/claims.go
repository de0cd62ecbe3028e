package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Short access tokens limit the blast radius of
// a leaked bearer token; the refresh TTL bounds how long an idle device
// session survives.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// AccessClaims are the claims carried by an access token. The token proves
// identity only; it carries no device binding.
type AccessClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"userId"`
}

// RefreshClaims are the claims carried by a refresh token. The device id
// binds the token to one session row; together with iat it forms the
// session's identity for rotation matching.
type RefreshClaims struct {
	jwt.RegisteredClaims

	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
}

// IssuedAt returns the iat claim as a UTC time, or the zero time when absent.
func (c RefreshClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time.UTC()
}

// ExpiresAt returns the exp claim as a UTC time, or the zero time when absent.
func (c RefreshClaims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time.UTC()
}
