package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lockbay/authd/internal/auth/service"
	"github.com/lockbay/authd/internal/auth/store"
	"github.com/lockbay/authd/pkg/httpx"
	"github.com/lockbay/authd/pkg/jwtx"
	"github.com/lockbay/authd/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	UserService    *service.UserService
	SessionService *service.SessionService
}

func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSecurity()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	accessGuard := AccessGuard(r.codec, r.SessionService)
	refreshGuard := RefreshGuard(r.codec, r.SessionService)

	// POST /login - strict rate limit by IP (authentication attempts)
	loginHandler := &LoginHandler{UserService: r.UserService, SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit by IP; the guard resolves the
	// cookie before the handler rotates the session.
	refreshHandler := &RefreshHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			refreshGuard,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /logout - moderate rate limit by IP
	logoutHandler := &LogoutHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			refreshGuard,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /me - lenient rate limit by user
	meHandler := &MeHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(meHandler,
			accessGuard,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSecurity() {
	refreshGuard := RefreshGuard(r.codec, r.SessionService)
	h := &DevicesHandler{SessionService: r.SessionService}

	// GET /devices - lenient rate limit by user
	r.Mux.Handle("GET /v1/security/devices",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			refreshGuard,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// DELETE /devices - moderate rate limit by user (bulk termination)
	r.Mux.Handle("DELETE /v1/security/devices",
		httpx.Chain(http.HandlerFunc(h.HandleTerminateOthers),
			refreshGuard,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// DELETE /devices/{deviceId} - moderate rate limit by user
	r.Mux.Handle("DELETE /v1/security/devices/{deviceId}",
		httpx.Chain(http.HandlerFunc(h.HandleTerminate),
			refreshGuard,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may
	// poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
