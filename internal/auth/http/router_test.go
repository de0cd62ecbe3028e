package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockbay/authd/internal/auth/domain"
	"github.com/lockbay/authd/internal/auth/service"
	"github.com/lockbay/authd/internal/auth/store"
	"github.com/lockbay/authd/internal/auth/store/drivers/sqlite"
	"github.com/lockbay/authd/pkg/cryptox"
	"github.com/lockbay/authd/pkg/jwtx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "authd-http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type testEnv struct {
	server *httptest.Server
	store  store.Store
	users  *service.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec("authd-test", []byte("access-secret"), []byte("refresh-secret"))
	require.NoError(t, err)

	users := &service.UserService{Store: st}
	sessions := &service.SessionService{Codec: codec, Store: st}

	router := NewRouter(codec, "test", st, slog.New(slog.DiscardHandler))
	router.UserService = users
	router.SessionService = sessions
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: st, users: users}
}

func (e *testEnv) createUser(t *testing.T, login, password string) *domain.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), login, login+"@example.com", password)
	require.NoError(t, err)
	return u
}

// login performs the HTTP login flow and returns the access token and the
// refresh cookie.
func (e *testEnv) login(t *testing.T, login, password string) (string, *http.Cookie) {
	t.Helper()

	resp := e.postJSON(t, "/v1/auth/login", map[string]string{
		"loginOrEmail": login,
		"password":     password,
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.AccessToken)
	require.Equal(t, "Bearer", body.TokenType)

	cookie := refreshCookieFrom(resp)
	require.NotNil(t, cookie, "login must set the refresh cookie")
	require.True(t, cookie.HttpOnly)
	return body.AccessToken, cookie
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any, cookie *http.Cookie) *http.Response {
	t.Helper()

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(payload))

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) do(t *testing.T, method, path string, cookie *http.Cookie, bearer string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func refreshCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse-1")

	t.Run("valid credentials", func(t *testing.T) {
		access, cookie := env.login(t, "alice", "correct-horse-1")
		require.NotEmpty(t, access)
		require.NotEmpty(t, cookie.Value)
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		resp1 := env.postJSON(t, "/v1/auth/login", map[string]string{
			"loginOrEmail": "alice", "password": "wrong",
		}, nil)
		defer resp1.Body.Close()
		resp2 := env.postJSON(t, "/v1/auth/login", map[string]string{
			"loginOrEmail": "nobody", "password": "wrong",
		}, nil)
		defer resp2.Body.Close()

		require.Equal(t, http.StatusUnauthorized, resp1.StatusCode)
		require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := env.postJSON(t, "/v1/auth/login", map[string]string{"loginOrEmail": "alice"}, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginDeviceTitle(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "frank", "pw-frank-12")

	listTitles := func(t *testing.T, cookie *http.Cookie) []string {
		resp := env.do(t, http.MethodGet, "/v1/security/devices", cookie, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var devices []domain.DeviceView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&devices))
		titles := make([]string, 0, len(devices))
		for _, d := range devices {
			titles = append(titles, d.Title)
		}
		return titles
	}

	t.Run("falls back to the user agent", func(t *testing.T) {
		ua := "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0"

		var body bytes.Buffer
		require.NoError(t, json.NewEncoder(&body).Encode(map[string]string{
			"loginOrEmail": "frank", "password": "pw-frank-12",
		}))
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/auth/login", &body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ua)

		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		cookie := refreshCookieFrom(resp)
		require.NotNil(t, cookie)
		require.Contains(t, listTitles(t, cookie), ua)
	})

	t.Run("explicit deviceName wins over the header", func(t *testing.T) {
		resp := env.postJSON(t, "/v1/auth/login", map[string]string{
			"loginOrEmail": "frank", "password": "pw-frank-12",
			"deviceName": "work laptop",
		}, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		cookie := refreshCookieFrom(resp)
		require.NotNil(t, cookie)
		require.Contains(t, listTitles(t, cookie), "work laptop")
	})
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "bob", "pw-bob-123")
	access, _ := env.login(t, "bob", "pw-bob-123")

	t.Run("with valid token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/auth/me", nil, access)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			UserID string `json:"userId"`
			Login  string `json:"login"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, user.ID, body.UserID)
		require.Equal(t, "bob", body.Login)
	})

	t.Run("without token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/auth/me", nil, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("with garbage token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/auth/me", nil, "not-a-jwt")
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "carol", "pw-carol-12")
	_, cookie := env.login(t, "carol", "pw-carol-12")

	t.Run("refresh issues a new pair", func(t *testing.T) {
		resp := env.postJSON(t, "/v1/auth/refresh", nil, cookie)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		newCookie := refreshCookieFrom(resp)
		require.NotNil(t, newCookie)
		require.NotEmpty(t, newCookie.Value)
		cookie = newCookie
	})

	t.Run("refresh without a cookie fails", func(t *testing.T) {
		resp := env.postJSON(t, "/v1/auth/refresh", nil, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout kills the session", func(t *testing.T) {
		resp := env.postJSON(t, "/v1/auth/logout", nil, cookie)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		// The same cookie no longer names a live session.
		resp2 := env.postJSON(t, "/v1/auth/refresh", nil, cookie)
		defer resp2.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	})
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "dave", "pw-dave-123")
	env.createUser(t, "eve", "pw-eve-1234")

	_, cookieA := env.login(t, "dave", "pw-dave-123")
	_, cookieB := env.login(t, "dave", "pw-dave-123")
	_, cookieEve := env.login(t, "eve", "pw-eve-1234")

	listDevices := func(t *testing.T, cookie *http.Cookie) []domain.DeviceView {
		resp := env.do(t, http.MethodGet, "/v1/security/devices", cookie, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var devices []domain.DeviceView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&devices))
		return devices
	}

	devices := listDevices(t, cookieA)
	require.Len(t, devices, 2)

	eveDevices := listDevices(t, cookieEve)
	require.Len(t, eveDevices, 1)

	t.Run("terminating an unknown device is 404", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/v1/security/devices/no-such-device", cookieA, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("terminating someone else's device is 403", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/v1/security/devices/"+eveDevices[0].DeviceID, cookieA, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("terminate others keeps only the current device", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/v1/security/devices", cookieA, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		devices := listDevices(t, cookieA)
		require.Len(t, devices, 1)

		// The terminated device's cookie stops refreshing.
		resp2 := env.postJSON(t, "/v1/auth/refresh", nil, cookieB)
		defer resp2.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

		// An unrelated user is untouched.
		require.Len(t, listDevices(t, cookieEve), 1)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/livez", nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2 := env.do(t, http.MethodGet, "/readyz", nil, "")
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
}
