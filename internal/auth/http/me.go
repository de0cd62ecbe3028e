package http

import (
	"net/http"

	"github.com/lockbay/authd/internal/auth/service"
	"github.com/lockbay/authd/pkg/httpx"
	"github.com/lockbay/authd/pkg/slogx"
)

// MeHandler serves GET /v1/auth/me behind the access guard.
type MeHandler struct {
	UserService *service.UserService
}

type meResponse struct {
	UserID string `json:"userId"`
	Login  string `json:"login"`
	Email  string `json:"email"`
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		writeUnauthorized(w)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		log.Warn("failed to load user", "user_id", userID, "err", err)
		writeUnauthorized(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		UserID: user.ID,
		Login:  user.Login,
		Email:  user.Email,
	})
}
