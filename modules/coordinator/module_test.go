package coordinator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/modules/coordinator"
	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/cookie"
	"github.com/dmitrymomot/raisekit/pkg/handler"
	"github.com/dmitrymomot/raisekit/pkg/jwt"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/svc/profile"
	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

const (
	cookieSecret   = "0123456789abcdef0123456789abcdef"
	providerSecret = "provider-signing-key-0123456789ab"
	browserCookie  = "raisekit_browser"
)

func newTokens(t *testing.T, key string) *jwt.Service {
	t.Helper()
	tokens, err := jwt.New([]byte(key))
	require.NoError(t, err)
	return tokens
}

// providerToken mints the access token the provider hands the browser.
func providerToken(t *testing.T, tokens *jwt.Service, principalID string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	token, err := tokens.Generate(&authevents.ProviderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:          principalID + "@example.com",
		EmailConfirmed: true,
		PasswordSet:    true,
	})
	require.NoError(t, err)
	return token
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newStore(t *testing.T) *profile.MemoryStore {
	t.Helper()
	store := profile.NewMemoryStore()
	store.Put(profile.Profile{ID: "startup-profile-7", PrincipalID: "P1", Role: profile.RoleStartup, DisplayName: "Acme"})
	store.Put(profile.Profile{
		ID: "investor-profile-9", PrincipalID: "P1", Role: profile.RoleInvestor, DisplayName: "Ada",
		GovernmentID: "GOV-1", IdentityDocument: "passport.pdf",
	})
	require.NoError(t, store.SetActiveProfile(context.Background(), "P1", "startup-profile-7"))
	return store
}

func newRegistry(t *testing.T, store profile.Store, opts ...coordinator.RegistryOption) *coordinator.Registry {
	t.Helper()
	opts = append([]coordinator.RegistryOption{
		coordinator.WithResolver(pagestate.Resolver{AppHosts: []string{"app.raisekit.test"}, DefaultView: pagestate.ViewDashboard}),
		coordinator.WithReconcilerConfig(reconciler.Config{
			DedupWindow:     reconciler.DefaultDedupWindow,
			SafetyNetDelay:  reconciler.DefaultSafetyNetDelay,
			StartupInterval: 5 * time.Millisecond,
			ResolveTimeout:  time.Second,
			FallbackRole:    "startup",
		}),
		coordinator.WithTabOptions(reconciler.WithTabSleeper(noSleep)),
	}, opts...)
	reg := coordinator.NewRegistry(store, opts...)
	t.Cleanup(reg.Close)
	return reg
}

func newHandler(t *testing.T, debug bool) http.Handler {
	t.Helper()
	cookies, err := cookie.New([]string{cookieSecret})
	require.NoError(t, err)
	cfg := coordinator.Config{
		BrowserCookie:    browserCookie,
		BrowserCookieTTL: time.Hour,
		ViewCookieTTL:    720 * time.Hour,
	}
	return coordinator.NewModule(newRegistry(t, newStore(t)), cookies, newTokens(t, providerSecret), cfg,
		coordinator.WithDebug(debug)).Handle()
}

// client replays cookies between requests like a browser.
type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, h http.Handler) *client {
	return &client{t: t, h: h, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.doWithToken(method, path, body, "")
}

func (c *client) doWithToken(method, path string, body any, token string) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return rec
}

type envelope[T any] struct {
	Data  T                    `json:"data"`
	Meta  map[string]any       `json:"meta"`
	Error *handler.ErrorDetail `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

type tabBody struct {
	State   reconciler.TabState `json:"state"`
	History []pagestate.Entry   `json:"history"`
}

func signIn(c *client, principalID string) {
	c.t.Helper()
	token := providerToken(c.t, newTokens(c.t, providerSecret), principalID, time.Hour)
	rec := c.doWithToken(http.MethodPost, "/auth/events", map[string]string{"kind": "SIGNED_IN"}, token)
	require.Equal(c.t, http.StatusAccepted, rec.Code, rec.Body.String())
}

func openTab(c *client, rawURL string) envelope[tabBody] {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/tabs", map[string]string{"url": rawURL})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[tabBody](c.t, rec)
}

func TestModule_TabLifecycle(t *testing.T) {
	t.Parallel()

	c := newClient(t, newHandler(t, false))
	signIn(c, "P1")
	require.Contains(t, c.cookies, browserCookie)

	opened := openTab(c, "https://app.raisekit.test/?page=dashboard")
	assert.Equal(t, "resolved", opened.Meta["outcome"])
	state := opened.Data.State
	require.NotNil(t, state.Session.Identity)
	assert.Equal(t, "startup-profile-7", state.Session.Identity.ID)
	assert.Equal(t, pagestate.CompleteRegistration, state.Location.Page)
	tabPath := "/tabs/" + state.ID

	rec := c.do(http.MethodGet, tabPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, state.ID, decode[tabBody](t, rec).Data.State.ID)

	rec = c.do(http.MethodGet, tabPath+"/profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]profile.Profile](t, rec).Data, 2)

	rec = c.do(http.MethodPost, tabPath+"/transitions", map[string]string{"trigger": "signed_in"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "auth-driven triggers are not accepted from the UI")

	rec = c.do(http.MethodPost, tabPath+"/profiles/active", map[string]string{"profile_id": "investor-profile-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	switched := decode[tabBody](t, rec).Data.State
	require.NotNil(t, switched.Session.Identity)
	assert.Equal(t, "investor-profile-9", switched.Session.Identity.ID)
	assert.Equal(t, pagestate.Dashboard, switched.Location.Page)

	rec = c.do(http.MethodPost, tabPath+"/transitions", map[string]string{"trigger": "plan_chosen"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, tabPath+"/view", map[string]string{"view": "startupHealth"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagestate.ViewStartupHealth, decode[pagestate.Location](t, rec).Data.View)
	require.Contains(t, c.cookies, coordinator.CookieCurrentView)
	assert.Equal(t, "startupHealth", c.cookies[coordinator.CookieCurrentView].Value)

	rec = c.do(http.MethodPost, tabPath+"/view", map[string]string{"view": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, tabPath+"/profiles/active", map[string]string{"profile_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, tabPath+"/navigate", map[string]string{"url": "https://app.raisekit.test/?page=subscription"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagestate.Subscription, decode[pagestate.Location](t, rec).Data.Page)

	rec = c.do(http.MethodDelete, tabPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodGet, tabPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModule_TabOwnership(t *testing.T) {
	t.Parallel()

	h := newHandler(t, false)
	owner := newClient(t, h)
	opened := openTab(owner, "https://app.raisekit.test/")
	assert.Equal(t, "no_session", opened.Meta["outcome"])
	assert.Equal(t, pagestate.Login, opened.Data.State.Location.Page)
	tabPath := "/tabs/" + opened.Data.State.ID

	rec := owner.do(http.MethodGet, tabPath+"/profiles", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stranger := newClient(t, h)
	rec = stranger.do(http.MethodGet, tabPath, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = stranger.do(http.MethodDelete, tabPath, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = owner.do(http.MethodGet, "/tabs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[any](t, rec).Error.Code)
}

func TestModule_SignOutReachesTabs(t *testing.T) {
	t.Parallel()

	c := newClient(t, newHandler(t, false))
	signIn(c, "P1")
	tabPath := "/tabs/" + openTab(c, "https://app.raisekit.test/?page=dashboard").Data.State.ID

	rec := c.do(http.MethodPost, "/auth/events", map[string]string{"kind": "SIGNED_OUT"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		rec := c.do(http.MethodGet, tabPath, nil)
		var env envelope[tabBody]
		if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
			return false
		}
		state := env.Data.State
		return state.Location.Page == pagestate.Login && !state.Session.IsAuthenticated
	}, time.Second, 10*time.Millisecond)
}

func TestModule_PublishEventValidation(t *testing.T) {
	t.Parallel()

	h := newHandler(t, false)
	valid := providerToken(t, newTokens(t, providerSecret), "P1", time.Hour)
	expired := providerToken(t, newTokens(t, providerSecret), "P1", -time.Hour)
	foreign := providerToken(t, newTokens(t, "not-the-provider-key-0123456789ab"), "P1", time.Hour)

	tests := []struct {
		name     string
		body     any
		token    string
		wantCode int
	}{
		{name: "unknown kind", body: map[string]string{"kind": "BOGUS"}, token: valid, wantCode: http.StatusBadRequest},
		{name: "sign in without token", body: map[string]string{"kind": "SIGNED_IN"}, wantCode: http.StatusUnauthorized},
		{name: "sign in with expired token", body: map[string]string{"kind": "SIGNED_IN"}, token: expired, wantCode: http.StatusUnauthorized},
		{name: "sign in with foreign token", body: map[string]string{"kind": "SIGNED_IN"}, token: foreign, wantCode: http.StatusUnauthorized},
		{name: "unknown field", body: map[string]string{"kind": "SIGNED_OUT", "extra": "x"}, wantCode: http.StatusBadRequest},
		{name: "sign in", body: map[string]string{"kind": "SIGNED_IN"}, token: valid, wantCode: http.StatusAccepted},
		{name: "initial session without token", body: map[string]string{"kind": "INITIAL_SESSION"}, wantCode: http.StatusAccepted},
		{name: "sign out", body: map[string]string{"kind": "SIGNED_OUT"}, wantCode: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := newClient(t, h).doWithToken(http.MethodPost, "/auth/events", tt.body, tt.token)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestModule_SessionIsNeverClientAsserted(t *testing.T) {
	t.Parallel()

	h := newHandler(t, false)
	c := newClient(t, h)

	rec := c.do(http.MethodPost, "/auth/events", map[string]any{
		"kind":    "SIGNED_IN",
		"session": authevents.Session{PrincipalID: "P1", EmailConfirmed: true, PasswordSet: true},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a session in the body is not accepted")

	forged := providerToken(t, newTokens(t, "not-the-provider-key-0123456789ab"), "P1", time.Hour)
	rec = c.doWithToken(http.MethodPost, "/auth/events", map[string]string{"kind": "SIGNED_IN"}, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[any](t, rec).Error.Code)

	opened := openTab(c, "https://app.raisekit.test/?page=dashboard")
	assert.Equal(t, "no_session", opened.Meta["outcome"])
	assert.Nil(t, opened.Data.State.Session.Identity)

	rec = c.do(http.MethodGet, "/tabs/"+opened.Data.State.ID+"/profiles", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = c.do(http.MethodPost, "/tabs/"+opened.Data.State.ID+"/profiles/active", map[string]string{"profile_id": "investor-profile-9"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestModule_BrowserCookie(t *testing.T) {
	t.Parallel()

	h := newHandler(t, false)

	req := httptest.NewRequest(http.MethodGet, "/tabs/unknown", nil)
	req.AddCookie(&http.Cookie{Name: browserCookie, Value: "forged"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Len(t, rec.Result().Cookies(), 1, "a tampered cookie is replaced")

	c := newClient(t, h)
	c.do(http.MethodGet, "/tabs/unknown", nil)
	require.Contains(t, c.cookies, browserCookie)
	rec = c.do(http.MethodGet, "/tabs/unknown", nil)
	assert.Empty(t, rec.Result().Cookies(), "a valid cookie is kept")
}

func TestModule_ViewCookieSelectsDefaultView(t *testing.T) {
	t.Parallel()

	c := newClient(t, newHandler(t, false))
	c.cookies[coordinator.CookieCurrentView] = &http.Cookie{Name: coordinator.CookieCurrentView, Value: "startupHealth"}

	loc := openTab(c, "https://www.raisekit.test/?page=dashboard").Data.State.Location
	assert.Equal(t, pagestate.Dashboard, loc.Page)
	assert.Equal(t, pagestate.ViewStartupHealth, loc.View)
}

func TestModule_Debug(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		c := newClient(t, newHandler(t, false))
		tabPath := "/tabs/" + openTab(c, "https://app.raisekit.test/").Data.State.ID

		rec := c.do(http.MethodGet, tabPath+"/debug", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		c := newClient(t, newHandler(t, true))
		signIn(c, "P1")
		tabPath := "/tabs/" + openTab(c, "https://app.raisekit.test/?page=dashboard").Data.State.ID

		rec := c.do(http.MethodGet, tabPath+"/debug", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[reconciler.Snapshot](t, rec).Data.IsAuthenticated)

		rec = c.do(http.MethodPost, tabPath+"/debug/replay", map[string]string{"kind": "TOKEN_REFRESHED"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored_refresh", decode[reconciler.Snapshot](t, rec).Meta["outcome"])

		rec = c.do(http.MethodPost, tabPath+"/debug/replay", map[string]string{"kind": "BOGUS"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = c.do(http.MethodPost, tabPath+"/debug/resume", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[reconciler.Snapshot](t, rec).Data.IgnoreEvents)

		rec = c.do(http.MethodPost, tabPath+"/debug/dedup/clear", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = c.do(http.MethodPost, tabPath+"/debug/reload", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		snap := decode[reconciler.Snapshot](t, rec).Data
		assert.True(t, snap.IsAuthenticated)
		assert.Positive(t, snap.Epoch)
	})
}
