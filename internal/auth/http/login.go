package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lockbay/authd/internal/auth/service"
	"github.com/lockbay/authd/pkg/httpx"
	"github.com/lockbay/authd/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login. Credentials come in as JSON; on
// success the access token is returned in the body and the refresh token is
// set as an HTTP-only cookie. Every failure mode (unknown user, wrong
// password, bad TOTP code) gets the same 401 so nothing leaks about which
// part was wrong.
type LoginHandler struct {
	UserService    *service.UserService
	SessionService *service.SessionService
}

type loginRequest struct {
	LoginOrEmail string `json:"loginOrEmail"`
	Password     string `json:"password"`
	OTPCode      string `json:"otpCode,omitempty"`
	DeviceName   string `json:"deviceName,omitempty"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.LoginOrEmail == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "loginOrEmail and password are required")
		return
	}

	user, err := h.UserService.ValidateCredentials(ctx, req.LoginOrEmail, req.Password, req.OTPCode)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid login or password")
			return
		}
		log.Error("credential validation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	// An explicit device name wins; browsers that send none are labelled by
	// their user agent so the devices view stays readable.
	deviceName := req.DeviceName
	if deviceName == "" {
		deviceName = r.UserAgent()
	}

	pair, err := h.SessionService.Login(ctx, user.ID, deviceName, httpx.IPKeyExtractor(r))
	if err != nil {
		log.Error("login failed to create session", "user_id", user.ID, "err", err)
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
