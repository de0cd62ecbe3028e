package domain

import "time"

// TokenPair is what login and refresh return: the access token for the
// response body and the refresh token destined for the HTTP-only cookie.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"-"` // cookie only, never in the body
	TokenType    string        `json:"tokenType,omitempty"`
	ExpiresIn    time.Duration `json:"-"`

	// RefreshExpiresAt mirrors the refresh token's own exp claim; the
	// cookie expiry is set to exactly this instant.
	RefreshExpiresAt time.Time `json:"-"`
}
