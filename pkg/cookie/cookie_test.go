package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/pkg/cookie"
)

const (
	secretA = "0123456789abcdef0123456789abcdef"
	secretB = "fedcba9876543210fedcba9876543210"
)

func replay(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := cookie.New(nil)
	require.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.New([]string{"", ""})
	require.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.New([]string{"short"})
	require.ErrorIs(t, err, cookie.ErrSecretTooShort)

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestManager_SignedRoundTrip(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.SetSigned(rec, "lastAuthUserId", "principal-1", 24*time.Hour)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 86400, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, cookies[0].Value, "principal-1")

	got, err := m.GetSigned(replay(rec), "lastAuthUserId")
	require.NoError(t, err)
	assert.Equal(t, "principal-1", got)
}

func TestManager_Tampered(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.SetSigned(rec, "name", "value", 0)
	c := rec.Result().Cookies()[0]

	encoded, sig, _ := strings.Cut(c.Value, "|")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "name", Value: encoded + "|x" + sig})
	_, err = m.GetSigned(req, "name")
	require.ErrorIs(t, err, cookie.ErrInvalidSignature)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "name", Value: "no-separator"})
	_, err = m.GetSigned(req, "name")
	require.ErrorIs(t, err, cookie.ErrInvalidFormat)

	_, err = m.GetSigned(httptest.NewRequest(http.MethodGet, "/", nil), "missing")
	require.ErrorIs(t, err, cookie.ErrCookieNotFound)
}

func TestManager_SecretRotation(t *testing.T) {
	t.Parallel()

	old, err := cookie.New([]string{secretA})
	require.NoError(t, err)
	rotated, err := cookie.New([]string{secretB, secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	old.SetSigned(rec, "browser_id", "b-1", 0)

	got, err := rotated.GetSigned(replay(rec), "browser_id")
	require.NoError(t, err)
	assert.Equal(t, "b-1", got)
}

func TestMemoryJar(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jar := cookie.NewMemoryJar(cookie.WithClock(func() time.Time { return now }))

	_, err := jar.Get("currentView")
	require.ErrorIs(t, err, cookie.ErrCookieNotFound)

	require.NoError(t, jar.Set("currentView", "dashboard", time.Hour))
	require.NoError(t, jar.Set("forever", "x", 0))

	v, err := jar.Get("currentView")
	require.NoError(t, err)
	assert.Equal(t, "dashboard", v)

	now = now.Add(time.Hour)
	_, err = jar.Get("currentView")
	require.ErrorIs(t, err, cookie.ErrCookieNotFound)

	v, err = jar.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	require.NoError(t, jar.Delete("forever"))
	_, err = jar.Get("forever")
	require.ErrorIs(t, err, cookie.ErrCookieNotFound)
}

func TestHTTPJar(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	jar := m.Jar(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, jar.Set("currentView", "startupHealth", 30*24*time.Hour))
	v, err := jar.Get("currentView")
	require.NoError(t, err)
	assert.Equal(t, "startupHealth", v)

	next := m.Jar(httptest.NewRecorder(), replay(rec))
	v, err = next.Get("currentView")
	require.NoError(t, err)
	assert.Equal(t, "startupHealth", v)

	require.NoError(t, next.Delete("currentView"))
	_, err = next.Get("currentView")
	require.ErrorIs(t, err, cookie.ErrCookieNotFound)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	m, err := cookie.NewFromConfig(cookie.Config{
		Secrets:  " " + secretA + " , " + secretB,
		Path:     "/app",
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.SetSigned(rec, "n", "v", 0)
	c := rec.Result().Cookies()[0]
	assert.Equal(t, "/app", c.Path)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	_, err = cookie.NewFromConfig(cookie.Config{})
	require.ErrorIs(t, err, cookie.ErrNoSecret)
}
