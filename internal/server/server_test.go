package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"session-sentinel/internal/audit"
	"session-sentinel/internal/auth"
	"session-sentinel/internal/common/config"
	"session-sentinel/internal/common/errors"
	"session-sentinel/internal/common/logger"
	"session-sentinel/internal/session"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	clock   *fakeClock
	store   *session.MemoryStore
	cookies *CookieManager
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := session.NewMemoryStore()
	policy := session.Policy{
		InactivityTimeout: 1800 * time.Second,
		WarningThreshold:  300 * time.Second,
	}

	log := logger.NewNoOpLogger()
	cookies := NewCookieManager(false)
	recorder := audit.NewRecorder(audit.NewLoggerSink(log), 16, log)
	t.Cleanup(recorder.Close)
	errs := errors.NewErrorHandler(log)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	authenticator := auth.NewStaticAuthenticator([]config.StaticUser{
		{Username: "alice", PrincipalID: "principal-alice", PasswordHash: string(hash)},
	}, log)

	handlers := NewHandlers(store, "memory", policy, clock, authenticator, cookies, recorder, errs, log, 30000)
	interceptor := NewInterceptor(store, "memory", policy, clock, cookies, recorder, errs, log)

	return &fixture{
		clock:   clock,
		store:   store,
		cookies: cookies,
		router:  NewRouter(handlers, interceptor, nil),
	}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: f.cookies.Name(), Value: token})
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/login", "", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code, envelope.Reason
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/login", "", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token          string `json:"token"`
		PrincipalID    string `json:"principal_id"`
		ExpiresIn      int    `json:"expires_in"`
		PollIntervalMS int    `json:"poll_interval_ms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "principal-alice", resp.PrincipalID)
	assert.Equal(t, 1800, resp.ExpiresIn)
	assert.Equal(t, 30000, resp.PollIntervalMS)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/login", "", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	code, _ := decodeErrorCode(t, w)
	assert.Equal(t, "CREDENTIALS_INVALID", code)
	assert.Equal(t, 0, f.store.Len())
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/login", "", `{nope`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/login", "", `{"username":"alice"}`).Code)
}

func TestStatusRequiresCredential(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/session/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	code, _ := decodeErrorCode(t, w)
	assert.Equal(t, "UNAUTHENTICATED", code)
}

func TestStatusUnknownToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/session/status", "no-such-session", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	code, _ := decodeErrorCode(t, w)
	assert.Equal(t, "SESSION_NOT_FOUND", code)
}

func TestStatusFreshSession(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := f.do(t, http.MethodGet, "/api/session/status", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var status session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, 1800, status.TimeRemaining)
	assert.False(t, status.ShowWarning)
	assert.Equal(t, "principal-alice", status.PrincipalID)

	assert.Equal(t, "1800", w.Header().Get(HeaderTimeoutRemaining))
	assert.Empty(t, w.Header().Get(HeaderWarning))
}

func TestStatusInsideWarningWindow(t *testing.T) {
	// Idle for 1500 of 1800 seconds: the pre-touch snapshot must report
	// 300 seconds remaining with the warning raised, even though the poll
	// itself then extends the session.
	f := newFixture(t)
	token := f.login(t)

	f.clock.Advance(1500 * time.Second)
	w := f.do(t, http.MethodGet, "/api/session/status", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var status session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 300, status.TimeRemaining)
	assert.True(t, status.ShowWarning)
	assert.Equal(t, "300", w.Header().Get(HeaderTimeoutRemaining))
	assert.Equal(t, "true", w.Header().Get(HeaderWarning))

	// The poll counted as activity, so the window is full again.
	w = f.do(t, http.MethodGet, "/api/session/status", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1800, status.TimeRemaining)
	assert.False(t, status.ShowWarning)
}

func TestExpiredSessionIsDestroyed(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	f.clock.Advance(1800 * time.Second)
	w := f.do(t, http.MethodGet, "/api/session/status", token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	code, reason := decodeErrorCode(t, w)
	assert.Equal(t, "SESSION_EXPIRED", code)
	assert.Equal(t, "inactivity_timeout", reason)

	// The record is gone; the next poll sees SESSION_NOT_FOUND, which
	// clients treat the same way.
	w = f.do(t, http.MethodGet, "/api/session/status", token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	code, _ = decodeErrorCode(t, w)
	assert.Equal(t, "SESSION_NOT_FOUND", code)
}

func TestActivityKeepsSessionAlive(t *testing.T) {
	// Requests every 1000 seconds keep a 1800 second window alive
	// indefinitely because each one slides the window forward.
	f := newFixture(t)
	token := f.login(t)

	for i := 0; i < 5; i++ {
		f.clock.Advance(1000 * time.Second)
		w := f.do(t, http.MethodGet, "/api/session", token, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestTwoTabsShareOneCountdown(t *testing.T) {
	// Polls from two tabs a second apart observe the same shared
	// last_activity_at, never two independent countdowns.
	f := newFixture(t)
	token := f.login(t)

	f.clock.Advance(100 * time.Second)
	w := f.do(t, http.MethodGet, "/api/session/status", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var first session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 1700, first.TimeRemaining)

	f.clock.Advance(1 * time.Second)
	w = f.do(t, http.MethodGet, "/api/session/status", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var second session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))

	// The first tab's poll counted as activity for both tabs.
	assert.Equal(t, 1799, second.TimeRemaining)
	assert.True(t, second.LastActivity.After(first.LastActivity))
}

func TestExtend(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	f.clock.Advance(1500 * time.Second)
	w := f.do(t, http.MethodPost, "/api/session/extend", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp extendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1800, resp.TimeRemaining)

	// 1700 seconds after the extend the session is still inside the window.
	f.clock.Advance(1700 * time.Second)
	w = f.do(t, http.MethodGet, "/api/session/status", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDetail(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	created := f.clock.Now()

	f.clock.Advance(600 * time.Second)
	w := f.do(t, http.MethodGet, "/api/session", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp detailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, token, resp.SessionID)
	assert.Equal(t, "principal-alice", resp.PrincipalID)
	assert.True(t, created.Equal(resp.CreatedAt))
	// Detail reflects the post-touch record.
	assert.True(t, f.clock.Now().Equal(resp.LastActivityAt))
	assert.True(t, f.clock.Now().Add(1800*time.Second).Equal(resp.ExpiresAt))
}

func TestLogoutIdempotent(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := f.do(t, http.MethodDelete, "/api/session", token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Logging out again, with the same stale token, still succeeds.
	w = f.do(t, http.MethodDelete, "/api/session", token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// And with no credential at all.
	w = f.do(t, http.MethodDelete, "/api/session", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/session/status", token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutLeavesOtherSessionsAlone(t *testing.T) {
	f := newFixture(t)
	first := f.login(t)
	second := f.login(t)
	require.NotEqual(t, first, second)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/api/session", first, "").Code)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/session/status", first, "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/session/status", second, "").Code)
}

func TestBearerTokenAccepted(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProbes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", "", "").Code)
}

func TestCookieManagerSecureNaming(t *testing.T) {
	assert.Equal(t, "__Host-session", NewCookieManager(true).Name())
	assert.Equal(t, "session", NewCookieManager(false).Name())
}
