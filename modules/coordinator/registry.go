package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/cookie"
	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/svc/profile"
	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

// SessionLookup returns the provider session last published for a browser
// anywhere in the deployment, or nil.
type SessionLookup func(ctx context.Context, browserID string) (*authevents.Session, error)

// DedupFactory builds the dedup guard shared by all tabs of a browser.
type DedupFactory func(browserID string, jar cookie.Jar) reconciler.DedupGuard

// CookieDedupFactory keeps the dedup cookies in the browser's jar.
func CookieDedupFactory(window time.Duration) DedupFactory {
	return func(_ string, jar cookie.Jar) reconciler.DedupGuard {
		return reconciler.NewCookieDedup(jar, reconciler.WithDedupWindow(window))
	}
}

// RedisDedupFactory keeps one dedup key per browser in Redis.
func RedisDedupFactory(client redis.UniversalClient, prefix string, window time.Duration) DedupFactory {
	return func(browserID string, _ cookie.Jar) reconciler.DedupGuard {
		return reconciler.NewRedisDedup(client, prefix, browserID, window)
	}
}

type browser struct {
	id    string
	hub   *authevents.Hub
	jar   *cookie.MemoryJar
	dedup reconciler.DedupGuard
	tabs  map[string]*reconciler.Tab
}

// Registry owns the browsers served by this instance and their open tabs.
type Registry struct {
	profiles profile.Store
	startups profile.StartupStore
	resolver pagestate.Resolver
	cfg      reconciler.Config
	dedup    DedupFactory
	log      *slog.Logger
	rec      metrics.Recorder
	tabOpts  []reconciler.TabOption
	newID    func() string
	maxTabs  int
	sessions SessionLookup

	mu       sync.Mutex
	browsers map[string]*browser
	owners   map[string]string
	open     int
	closed   bool
}

type RegistryOption func(*Registry)

func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func WithRegistryRecorder(rec metrics.Recorder) RegistryOption {
	return func(r *Registry) {
		if rec != nil {
			r.rec = rec
		}
	}
}

func WithReconcilerConfig(cfg reconciler.Config) RegistryOption {
	return func(r *Registry) { r.cfg = cfg }
}

func WithResolver(res pagestate.Resolver) RegistryOption {
	return func(r *Registry) { r.resolver = res }
}

func WithDedupFactory(f DedupFactory) RegistryOption {
	return func(r *Registry) {
		if f != nil {
			r.dedup = f
		}
	}
}

// WithTabOptions passes opts to every tab the registry opens.
func WithTabOptions(opts ...reconciler.TabOption) RegistryOption {
	return func(r *Registry) { r.tabOpts = append(r.tabOpts, opts...) }
}

func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithSessionLookup seeds the hub of a browser first seen on this instance
// before its tab resolves, e.g. from the Redis bridge.
func WithSessionLookup(fn SessionLookup) RegistryOption {
	return func(r *Registry) { r.sessions = fn }
}

// WithMaxTabs limits open tabs per browser; zero means unlimited.
func WithMaxTabs(n int) RegistryOption {
	return func(r *Registry) { r.maxTabs = n }
}

func NewRegistry(profiles profile.Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		profiles: profiles,
		resolver: pagestate.Resolver{DefaultView: pagestate.ViewDashboard},
		cfg: reconciler.Config{
			DedupWindow:     reconciler.DefaultDedupWindow,
			SafetyNetDelay:  reconciler.DefaultSafetyNetDelay,
			StartupInterval: 2 * time.Second,
			ResolveTimeout:  15 * time.Second,
			FallbackRole:    string(profile.DefaultRole),
		},
		log:      logger.Discard(),
		rec:      metrics.Nop{},
		newID:    func() string { return xid.New().String() },
		browsers: make(map[string]*browser),
		owners:   make(map[string]string),
	}
	if s, ok := profiles.(profile.StartupStore); ok {
		r.startups = s
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dedup == nil {
		r.dedup = CookieDedupFactory(r.cfg.DedupWindow)
	}
	return r
}

// Browser registers a browser and returns its id. An empty or unknown id
// registers a new browser; unknown ids are kept so a browser cookie issued
// by another instance stays valid.
func (r *Registry) Browser(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRegistryClosed
	}
	return r.browserLocked(id).id, nil
}

func (r *Registry) browserLocked(id string) *browser {
	if b, ok := r.browsers[id]; ok {
		return b
	}
	if id == "" {
		id = r.newID()
	}
	jar := cookie.NewMemoryJar()
	b := &browser{
		id:    id,
		hub:   authevents.NewHub(authevents.WithHubLogger(r.log.With(logger.BrowserID(id)))),
		jar:   jar,
		dedup: r.dedup(id, jar),
		tabs:  make(map[string]*reconciler.Tab),
	}
	r.browsers[id] = b
	return b
}

// Hub returns the auth event hub of a browser served here, or nil.
func (r *Registry) Hub(browserID string) *authevents.Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.browsers[browserID]; ok {
		return b.hub
	}
	return nil
}

// OpenTab creates a tab for a page load of u and resolves the session that
// exists at load time. A valid view overrides the default dashboard view.
// An unconfirmed email does not fail the call; the tab reports it in its
// state.
func (r *Registry) OpenTab(ctx context.Context, browserID string, u *url.URL, userAgent string, view pagestate.View) (*reconciler.Tab, reconciler.Outcome, error) {
	if u == nil {
		return nil, "", ErrInvalidURL
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, "", ErrRegistryClosed
	}
	b := r.browserLocked(browserID)
	if r.maxTabs > 0 && len(b.tabs) >= r.maxTabs {
		r.mu.Unlock()
		return nil, "", ErrTooManyTabs
	}

	resolver := r.resolver
	if view.Valid() {
		resolver.DefaultView = view
	}
	id := r.newID()
	tab := reconciler.NewTab(id, u, userAgent, reconciler.Env{
		Source:   b.hub,
		Profiles: r.profiles,
		Startups: r.startups,
		Dedup:    b.dedup,
		Resolver: resolver,
		Config:   r.cfg,
		Logger:   r.log.With(logger.BrowserID(b.id)),
		Recorder: r.rec,
	}, r.tabOpts...)
	b.tabs[id] = tab
	r.owners[id] = b.id
	r.open++
	open := r.open
	r.mu.Unlock()
	r.rec.SetActiveTabs(open)

	r.seed(ctx, b)
	outcome, err := tab.Start(ctx)
	if err != nil && !errors.Is(err, reconciler.ErrEmailNotConfirmed) {
		_ = r.CloseTab(b.id, id)
		return nil, "", fmt.Errorf("start tab: %w", err)
	}
	r.log.DebugContext(ctx, "tab opened",
		logger.BrowserID(b.id),
		logger.TabID(id),
		logger.Outcome(string(outcome)),
	)
	return tab, outcome, nil
}

func (r *Registry) seed(ctx context.Context, b *browser) {
	if r.sessions == nil {
		return
	}
	s, err := r.sessions(ctx, b.id)
	if err != nil {
		r.log.WarnContext(ctx, "session lookup failed", logger.BrowserID(b.id), logger.Error(err))
		return
	}
	if b.hub.Seed(s) {
		r.log.DebugContext(ctx, "browser session seeded", logger.BrowserID(b.id), logger.PrincipalID(s.PrincipalID))
	}
}

// Tab returns a tab owned by browserID.
func (r *Registry) Tab(browserID, tabID string) (*reconciler.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[tabID]
	if !ok {
		return nil, ErrTabNotFound
	}
	if owner != browserID {
		return nil, ErrTabNotOwned
	}
	return r.browsers[owner].tabs[tabID], nil
}

// CloseTab stops a tab and forgets it. The browser, its hub and its cookies
// outlive the tab.
func (r *Registry) CloseTab(browserID, tabID string) error {
	r.mu.Lock()
	owner, ok := r.owners[tabID]
	if !ok {
		r.mu.Unlock()
		return ErrTabNotFound
	}
	if owner != browserID {
		r.mu.Unlock()
		return ErrTabNotOwned
	}
	b := r.browsers[owner]
	tab := b.tabs[tabID]
	delete(b.tabs, tabID)
	delete(r.owners, tabID)
	r.open--
	open := r.open
	r.mu.Unlock()

	tab.Close()
	r.rec.SetActiveTabs(open)
	return nil
}

// Close stops every tab and hub. Later calls are no-ops.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	browsers := r.browsers
	r.browsers = make(map[string]*browser)
	r.owners = make(map[string]string)
	r.open = 0
	r.mu.Unlock()

	for _, b := range browsers {
		for _, tab := range b.tabs {
			tab.Close()
		}
		_ = b.hub.Close()
	}
	r.rec.SetActiveTabs(0)
}
