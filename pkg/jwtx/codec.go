package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrNoSecret   = errors.New("jwtx: missing signing secret")
)

// Codec signs and verifies the two token kinds issued by the service. Access
// and refresh tokens use independent secrets so that rotating or leaking one
// never compromises the other, and a refresh token can never be replayed as
// an access token.
type Codec struct {
	Issuer string

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// NewCodec builds a Codec with defaulted TTLs. Both secrets are required.
func NewCodec(issuer string, accessSecret, refreshSecret []byte) (*Codec, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, ErrNoSecret
	}
	return &Codec{
		Issuer:        issuer,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     DefaultAccessTokenTTL,
		RefreshTTL:    DefaultRefreshTokenTTL,
	}, nil
}

// SignAccess issues a short-lived access token over {userId}.
func (c *Codec) SignAccess(userID string) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.AccessTTL)),
		},
		UserID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.AccessSecret)
}

// SignRefresh issues a refresh token over {userId, deviceId}. The iat/exp
// the signing step stamps into the claims are what the session row must
// mirror; recover them with DecodeRefreshUnverified rather than a second
// time source.
func (c *Codec) SignRefresh(userID, deviceID string) (string, error) {
	return c.SignRefreshAt(userID, deviceID, time.Now())
}

// SignRefreshAt issues a refresh token with an explicit issued-at. The wire
// iat has one-second resolution, so rotation uses this to force the new iat
// strictly past the previous one even when both fall in the same second.
func (c *Codec) SignRefreshAt(userID, deviceID string, issuedAt time.Time) (string, error) {
	at := issuedAt.UTC()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			IssuedAt:  jwt.NewNumericDate(at),
			ExpiresAt: jwt.NewNumericDate(at.Add(c.RefreshTTL)),
		},
		UserID:   userID,
		DeviceID: deviceID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.RefreshSecret)
}

// VerifyAccess checks signature and expiry of an access token.
func (c *Codec) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := c.verify(token, &claims, c.AccessSecret); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry of a refresh token and exposes
// the raw iat/exp for session matching.
func (c *Codec) VerifyRefresh(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.verify(token, &claims, c.RefreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	return claims, nil
}

// DecodeRefreshUnverified decodes refresh claims without checking the
// signature. Only for recovering iat/exp from a token this codec just
// signed; never feed it caller-supplied input.
func (c *Codec) DecodeRefreshUnverified(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return RefreshClaims{}, ErrMalformed
	}
	return claims, nil
}

func (c *Codec) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSig
		}
		return secret, nil
	}, jwt.WithIssuer(c.Issuer), jwt.WithExpirationRequired())
	switch {
	case err == nil && parsed.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrInvalidSig
	}
}
