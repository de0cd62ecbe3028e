package http

import (
	"errors"
	"net/http"

	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/service"
	"github.com/lockbay/authd/pkg/httpx"
	"github.com/lockbay/authd/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh behind the refresh guard. The
// guard has already resolved the cookie to a live session; this handler
// performs the rotation and hands out the new pair.
type RefreshHandler struct {
	SessionService *service.SessionService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sess := domain.SessionContext{
		UserID:   httpx.UserIDFromCtx(ctx),
		DeviceID: httpx.DeviceIDFromCtx(ctx),
		IssuedAt: httpx.IssuedAtFromCtx(ctx),
	}

	pair, err := h.SessionService.Refresh(ctx, sess, httpx.IPKeyExtractor(r))
	if err != nil {
		if errors.Is(err, service.ErrSessionRevoked) {
			// Lost a rotation race or raced a logout; the presented token no
			// longer names a live session.
			clearRefreshCookie(w)
			writeUnauthorized(w)
			return
		}
		log.Error("session rotation failed", "user_id", sess.UserID, "device_id", sess.DeviceID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: pair.AccessToken,
		TokenType:   pair.TokenType,
		ExpiresIn:   int64(pair.ExpiresIn.Seconds()),
	})
}

// LogoutHandler serves POST /v1/auth/logout behind the refresh guard. It
// deletes the caller's session and clears the cookie; repeating the call is
// harmless.
type LogoutHandler struct {
	SessionService *service.SessionService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	deviceID := httpx.DeviceIDFromCtx(ctx)
	userID := httpx.UserIDFromCtx(ctx)

	if err := h.SessionService.Logout(ctx, deviceID, userID); err != nil {
		log.Error("logout failed", "user_id", userID, "device_id", deviceID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
