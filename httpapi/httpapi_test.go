package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/jwt"
	"github.com/MrEthical07/credcore/refresh"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-password-123"

type testServer struct {
	handler http.Handler
	engine  *credcore.Engine
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T, mutate func(*Options)) *testServer {
	t.Helper()

	cfg := credcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	users := credcore.NewMemoryDirectory()
	engine, err := credcore.New().WithConfig(cfg).WithRefreshStore(refresh.NewMemoryStore()).WithUserDirectory(users).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	hash, err := engine.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, users.Add(credcore.UserRecord{
		Identity:     credcore.Identity{ID: "42", Username: "alice", Email: "alice@example.com", Role: "admin"},
		PasswordHash: hash,
	}))

	logs := &bytes.Buffer{}
	opts := Options{Auth: engine, Logger: zerolog.New(logs)}
	if mutate != nil {
		mutate(&opts)
	}
	return &testServer{handler: NewRouter(opts), engine: engine, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T) (sessionResponse, *http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", loginRequest{Username: "alice", Password: testPassword}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body, refreshCookie(t, rec)
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", refreshCookieName)
	return nil
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestLoginSetsCookieAndBody(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/auth/login", loginRequest{Username: "alice", Password: testPassword}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.ElementsMatch(t, []string{"accessToken", "expiresAt", "user"}, keys(raw))
	assert.Equal(t, map[string]any{"id": "42", "username": "alice", "email": "alice@example.com", "role": "admin"}, raw["user"])
	assert.NotContains(t, rec.Body.String(), refreshCookie(t, rec).Value)

	c := refreshCookie(t, rec)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, refreshCookiePath, c.Path)
	assert.False(t, c.Secure)
	assert.Greater(t, c.MaxAge, 6*24*3600)
}

func TestLoginSecureCookie(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.CookieSecure = true })
	_, c := s.login(t)
	assert.True(t, c.Secure)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/auth/login", loginRequest{Username: "alice", Password: "wrong-password"}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgInvalidLogin, message(t, rec))

	rec = s.do(t, http.MethodPost, "/api/auth/login", loginRequest{Username: "nobody", Password: testPassword}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgInvalidLogin, message(t, rec))

	rec = s.do(t, http.MethodPost, "/api/auth/login", "{not json", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRefreshRotatesCookie(t *testing.T) {
	s := newTestServer(t, nil)
	_, first := s.login(t)

	rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := refreshCookie(t, rec)
	assert.NotEqual(t, first.Value, second.Value)

	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "42", body.User.ID)
	assert.NotEmpty(t, body.AccessToken)
}

func TestRefreshReuseIsGeneric401(t *testing.T) {
	s := newTestServer(t, nil)
	_, r1 := s.login(t)

	rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, r1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	r2 := refreshCookie(t, rec)

	for _, c := range []*http.Cookie{r1, r2, {Name: refreshCookieName, Value: "garbage"}} {
		rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, c, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, msgInvalidRefresh, message(t, rec))
		cleared := refreshCookie(t, rec)
		assert.Empty(t, cleared.Value)
		assert.Less(t, cleared.MaxAge, 0)
	}

	assert.Contains(t, s.logs.String(), "refresh token reuse detected")
}

func TestRefreshWithoutCookie(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgNoRefreshToken, message(t, rec))
	assert.Empty(t, refreshCookie(t, rec).Value)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	s := newTestServer(t, nil)
	_, c := s.login(t)

	for _, cookie := range []*http.Cookie{c, c, nil, {Name: refreshCookieName, Value: "unknown"}} {
		rec := s.do(t, http.MethodPost, "/api/auth/logout", nil, cookie, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, msgLoggedOut, message(t, rec))
		assert.Empty(t, refreshCookie(t, rec).Value)
	}

	rec := s.do(t, http.MethodPost, "/api/auth/refresh", nil, c, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	s := newTestServer(t, nil)
	body, _ := s.login(t)

	rec := s.do(t, http.MethodGet, "/api/auth/me", nil, nil, map[string]string{"Authorization": "Bearer " + body.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me["username"])
	assert.Equal(t, "admin", me["role"])

	rec = s.do(t, http.MethodGet, "/api/auth/me", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := true
	s := newTestServer(t, func(o *Options) {
		o.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("credcore_logout_total 0\n")) })
		o.Health = func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("redis down")
		}
	})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", nil, nil, nil).Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/healthz", nil, nil, nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", nil, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "credcore_"))

	plain := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, plain.do(t, http.MethodGet, "/metrics", nil, nil, nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.CORSOrigins = []string{"https://app.example.com"} })

	rec := s.do(t, http.MethodOptions, "/api/auth/refresh", nil, nil, map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = s.do(t, http.MethodOptions, "/api/auth/refresh", nil, nil, map[string]string{
		"Origin":                        "https://evil.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/healthz", nil, nil, map[string]string{requestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	assert.Contains(t, s.logs.String(), `"req_id":"abc-123"`)
}

func TestBackendFailureIs503(t *testing.T) {
	s := &testServer{handler: NewRouter(Options{Auth: failingAuth{}, Logger: zerolog.Nop()})}

	rec := s.do(t, http.MethodPost, "/api/auth/login", loginRequest{Username: "a", Password: "b"}, nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", nil, &http.Cookie{Name: refreshCookieName, Value: "x"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "cookie kept when the backend is down")
}

type failingAuth struct{}

func (failingAuth) Login(context.Context, string, string) (*credcore.Session, error) {
	return nil, credcore.ErrStorageUnavailable
}

func (failingAuth) Refresh(context.Context, string) (*credcore.Session, error) {
	return nil, credcore.ErrStorageUnavailable
}

func (failingAuth) Logout(context.Context, string) error { return nil }

func (failingAuth) ValidateAccess(string, ...jwt.VerifyOption) (*credcore.AccessClaims, error) {
	return nil, credcore.ErrAccessTokenInvalid
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
