package http

import (
	"errors"
	"net/http"

	"github.com/lockbay/authd/internal/auth/service"
	"github.com/lockbay/authd/pkg/httpx"
	"github.com/lockbay/authd/pkg/slogx"
)

// DevicesHandler serves the device-management endpoints under /v1/security.
// All of them sit behind the refresh guard: listing and terminating devices
// is a session-level capability, not an access-token one, so the caller must
// present the cookie that proves which device they currently are.
type DevicesHandler struct {
	SessionService *service.SessionService
}

// HandleList serves GET /v1/security/devices: every active session of the
// calling user, newest activity first.
func (h *DevicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	devices, err := h.SessionService.ListDevices(ctx, userID)
	if err != nil {
		log.Error("failed to list devices", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, devices)
}

// HandleTerminateOthers serves DELETE /v1/security/devices: one atomic purge
// of every session except the one the caller is on. The caller's own cookie
// keeps working.
func (h *DevicesHandler) HandleTerminateOthers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	deviceID := httpx.DeviceIDFromCtx(ctx)

	if err := h.SessionService.TerminateOtherSessions(ctx, userID, deviceID); err != nil {
		log.Error("failed to terminate other sessions", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleTerminate serves DELETE /v1/security/devices/{deviceId}. A device
// nobody has is 404; a device someone else owns is 403. Terminating the
// caller's own current device is allowed and behaves like a logout without
// clearing the cookie.
func (h *DevicesHandler) HandleTerminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	deviceID := r.PathValue("deviceId")
	if deviceID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "deviceId is required")
		return
	}

	err := h.SessionService.TerminateDeviceSession(ctx, deviceID, userID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrDeviceNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "device not found")
	case errors.Is(err, service.ErrSessionForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "device belongs to another user")
	default:
		log.Error("failed to terminate device session", "user_id", userID, "device_id", deviceID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}
