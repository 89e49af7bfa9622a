package reconciler_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/cookie"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/svc/profile"
	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

const (
	desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingRecorder counts event outcomes and safety reloads.
type countingRecorder struct {
	metrics.Nop
	mu       sync.Mutex
	outcomes map[string]int
	reloads  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: make(map[string]int)}
}

func (r *countingRecorder) RecordEvent(_, outcome string) {
	r.mu.Lock()
	r.outcomes[outcome]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordSafetyReload() {
	r.mu.Lock()
	r.reloads++
	r.mu.Unlock()
}

func (r *countingRecorder) count(outcome reconciler.Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[string(outcome)]
}

type browser struct {
	hub      *authevents.Hub
	jar      *cookie.MemoryJar
	dedup    *reconciler.CookieDedup
	store    *profile.MemoryStore
	clock    *testClock
	recorder *countingRecorder
}

func newBrowser(t *testing.T) *browser {
	t.Helper()
	clock := newTestClock()
	jar := cookie.NewMemoryJar()
	hub := authevents.NewHub()
	t.Cleanup(func() { _ = hub.Close() })
	return &browser{
		hub:      hub,
		jar:      jar,
		dedup:    reconciler.NewCookieDedup(jar, reconciler.WithDedupClock(clock.Now)),
		store:    profile.NewMemoryStore(),
		clock:    clock,
		recorder: newCountingRecorder(),
	}
}

// withP1 stores principal P1 with an incomplete startup profile (active) and
// a complete investor profile.
func (b *browser) withP1(t *testing.T) *browser {
	t.Helper()
	b.store.Put(profile.Profile{ID: "startup-profile-7", PrincipalID: "P1", Role: profile.RoleStartup, DisplayName: "Acme"})
	b.store.Put(profile.Profile{
		ID: "investor-profile-9", PrincipalID: "P1", Role: profile.RoleInvestor, DisplayName: "Ada",
		GovernmentID: "GOV-1", IdentityDocument: "passport.pdf",
	})
	require.NoError(t, b.store.SetActiveProfile(context.Background(), "P1", "startup-profile-7"))
	return b
}

func (b *browser) env() reconciler.Env {
	return reconciler.Env{
		Source:   b.hub,
		Profiles: b.store,
		Startups: b.store,
		Dedup:    b.dedup,
		Resolver: pagestate.Resolver{AppHosts: []string{"app.raisekit.test"}, DefaultView: pagestate.ViewDashboard},
		Config: reconciler.Config{
			StartupInterval: 5 * time.Millisecond,
			SafetyNetDelay:  reconciler.DefaultSafetyNetDelay,
			FallbackRole:    "startup",
		},
		Recorder: b.recorder,
	}
}

// signIn sets the provider session. Call it before any tab subscribes unless
// the event is meant to be delivered.
func (b *browser) signIn(t *testing.T, s *authevents.Session) {
	t.Helper()
	require.NoError(t, b.hub.Publish(context.Background(), authevents.Event{Kind: authevents.SignedIn, Session: s}))
}

func (b *browser) openTab(t *testing.T, rawURL, ua string, opts ...reconciler.TabOption) *reconciler.Tab {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	opts = append([]reconciler.TabOption{reconciler.WithTabSleeper(noSleep)}, opts...)
	tab := reconciler.NewTab("tab-"+t.Name(), u, ua, b.env(), opts...)
	t.Cleanup(tab.Close)
	return tab
}

func session(principalID string) *authevents.Session {
	return &authevents.Session{
		PrincipalID:    principalID,
		Email:          principalID + "@example.com",
		EmailConfirmed: true,
		PasswordSet:    true,
	}
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
