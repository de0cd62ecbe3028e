package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lockbay/authd/internal/auth/service"
	"github.com/lockbay/authd/pkg/httpx"
	"github.com/lockbay/authd/pkg/jwtx"
	"github.com/lockbay/authd/pkg/slogx"
)

func writeUnauthorized(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing credentials")
}

// AccessGuard authenticates requests by bearer access token. The token must
// verify cryptographically and its subject must still exist; tokens of
// deleted users are rejected even before their exp. On success the user id
// is placed on the request context.
func AccessGuard(codec *jwtx.Codec, sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			token, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w)
				return
			}

			claims, err := codec.VerifyAccess(token)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			userID, err := sessions.UserFromAccessClaims(ctx, claims)
			if err != nil {
				if !errors.Is(err, service.ErrUserNotFound) {
					log.Error("access guard store lookup failed", "err", err)
				}
				writeUnauthorized(w)
				return
			}

			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RefreshGuard authenticates requests by the refresh cookie. Beyond the
// signature and expiry, the token's (deviceId, iat, userId) triple must
// match a live session row exactly; a rotated-away or terminated token
// fails here with the same 401 as a forged one. On success user id, device
// id, and the token's iat land on the request context.
func RefreshGuard(codec *jwtx.Codec, sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			cookie, err := r.Cookie(RefreshCookieName)
			if err != nil || cookie.Value == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := codec.VerifyRefresh(cookie.Value)
			if err != nil {
				clearRefreshCookie(w)
				writeUnauthorized(w)
				return
			}

			sess, err := sessions.SessionFromRefreshClaims(ctx, claims)
			if err != nil {
				if !errors.Is(err, service.ErrSessionNotFound) {
					log.Error("refresh guard store lookup failed", "err", err)
				}
				clearRefreshCookie(w)
				writeUnauthorized(w)
				return
			}

			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, sess.UserID)
			ctx = context.WithValue(ctx, httpx.CtxKeyDeviceID, sess.DeviceID)
			ctx = context.WithValue(ctx, httpx.CtxKeyIssuedAt, sess.IssuedAt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
