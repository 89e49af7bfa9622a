package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/pkg/useragent"
	"github.com/dmitrymomot/raisekit/svc/dataloader"
	"github.com/dmitrymomot/raisekit/svc/profile"
)

// oneShotParams are dropped from the URL when a tab reloads itself; they
// belong to the link that opened the tab, not to its current location.
var oneShotParams = []string{
	pagestate.ParamError,
	pagestate.ParamErrorCode,
	pagestate.ParamType,
	pagestate.ParamAccessToken,
	pagestate.ParamRefreshToken,
	pagestate.ParamCode,
}

// Env holds what every tab of a browser shares.
type Env struct {
	Source   authevents.Source
	Profiles profile.Store
	Startups profile.StartupStore
	Dedup    DedupGuard
	Resolver pagestate.Resolver
	Config   Config
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// TabState is the externally visible state of a tab.
type TabState struct {
	ID             string             `json:"id"`
	Session        Snapshot           `json:"session"`
	Location       pagestate.Location `json:"location"`
	URL            string             `json:"url"`
	Loading        bool               `json:"loading"`
	Mobile         bool               `json:"mobile"`
	SafetyReloaded bool               `json:"safety_reloaded"`
}

// Tab is one open page: its state container, page machine, loader,
// watchdog, safety net and reconciler.
type Tab struct {
	id       string
	mobile   bool
	source   authevents.Source
	profiles profile.Store
	switcher *profile.Switcher
	dedup    DedupGuard
	log      *slog.Logger
	rec      metrics.Recorder
	now      func() time.Time

	state   *Store
	history *pagestate.MemoryHistory
	pages   *pagestate.Machine
	loader  *dataloader.Loader
	recon   *Reconciler
	safety  *SafetyNet

	mu  sync.Mutex
	url *url.URL
}

type tabOptions struct {
	sleeper  dataloader.Sleeper
	after    AfterFunc
	fetcher  dataloader.Fetcher
	interval time.Duration
	now      func() time.Time
}

type TabOption func(*tabOptions)

// WithTabSleeper replaces the watchdog's wall-clock sleep.
func WithTabSleeper(s dataloader.Sleeper) TabOption {
	return func(o *tabOptions) { o.sleeper = s }
}

// WithTabAfterFunc replaces the safety net's timer.
func WithTabAfterFunc(fn AfterFunc) TabOption {
	return func(o *tabOptions) { o.after = fn }
}

// WithTabFetcher replaces the profile-store fetcher of the data loader.
func WithTabFetcher(f dataloader.Fetcher) TabOption {
	return func(o *tabOptions) { o.fetcher = f }
}

func WithTabClock(now func() time.Time) TabOption {
	return func(o *tabOptions) { o.now = now }
}

// NewTab builds a tab for a page load of u by a browser with userAgent. The
// tab does nothing until Start.
func NewTab(id string, u *url.URL, userAgent string, env Env, opts ...TabOption) *Tab {
	o := tabOptions{interval: env.Config.StartupInterval, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	log := env.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With(logger.TabID(id))
	rec := env.Recorder
	if rec == nil {
		rec = metrics.Nop{}
	}
	if o.fetcher == nil {
		o.fetcher = dataloader.StoreFetcher{Store: env.Profiles, Now: o.now}
	}
	if u == nil {
		u = &url.URL{Path: "/"}
	}

	t := &Tab{
		id:       id,
		mobile:   useragent.IsMobile(userAgent),
		source:   env.Source,
		profiles: env.Profiles,
		switcher: profile.NewSwitcher(env.Profiles, profile.WithSwitcherLogger(log)),
		dedup:    env.Dedup,
		log:      log,
		rec:      rec,
		now:      o.now,
		state:    NewStore(),
		history:  pagestate.NewMemoryHistory(),
		url:      cloneURL(u),
	}
	t.pages = pagestate.Load(u, env.Resolver, t.history)
	t.loader = dataloader.New(t.state, o.fetcher,
		dataloader.WithLogger(log),
		dataloader.WithRecorder(rec),
		dataloader.WithOnLoaded(func(ctx context.Context, ds dataloader.Dataset) {
			t.recon.OnLoaded(ctx, ds)
		}),
	)
	watchdog := dataloader.NewWatchdog(t.state, t.loader,
		dataloader.WithSleeper(o.sleeper),
		dataloader.WithWatchdogLogger(log),
		dataloader.WithWatchdogRecorder(rec),
	)

	ropts := []Option{
		WithLogger(log),
		WithRecorder(rec),
		WithResolveTimeout(env.Config.ResolveTimeout),
		WithInviteFlow(t.inviteFlow),
		WithWatchdog(watchdog),
	}
	if role, ok := profile.ParseRole(env.Config.FallbackRole); ok {
		ropts = append(ropts, WithFallbackRole(role))
	}
	if env.Startups != nil {
		ropts = append(ropts, WithStartupLocator(dataloader.NewStartupLocator(env.Startups,
			dataloader.WithInterval(o.interval),
			dataloader.WithLocatorLogger(log),
		)))
	}
	t.recon = New(t.state, env.Source, env.Profiles, t.pages, t.loader, env.Dedup, ropts...)

	reload := func(ctx context.Context) {
		if err := t.Reload(ctx); err != nil {
			t.log.ErrorContext(ctx, "safety reload failed", logger.Error(err))
		}
	}
	t.safety = NewSafetyNet(t.state, t.mobile, reload,
		WithSafetyNetDelay(env.Config.SafetyNetDelay),
		WithAfterFunc(o.after),
		WithSafetyNetLogger(log),
		WithSafetyNetRecorder(rec),
	)
	return t
}

func (t *Tab) ID() string { return t.id }

// Start subscribes the tab to its browser's auth stream and resolves the
// session that exists at page load.
func (t *Tab) Start(ctx context.Context) (Outcome, error) {
	t.recon.Start()
	t.safety.Arm(ctx)
	return t.replay(ctx, authevents.InitialSession)
}

// Close stops the tab and waits for its background work.
func (t *Tab) Close() {
	t.safety.Disarm()
	t.recon.Stop()
}

// Wait blocks until the tab's background work started so far is done.
func (t *Tab) Wait() {
	t.recon.Wait()
}

// HandleEvent feeds ev through the reconciler synchronously.
func (t *Tab) HandleEvent(ctx context.Context, ev authevents.Event) (Outcome, error) {
	return t.recon.HandleEvent(ctx, ev)
}

func (t *Tab) State() TabState {
	return TabState{
		ID:             t.id,
		Session:        t.state.Snapshot(),
		Location:       t.pages.Location(),
		URL:            t.currentURL().String(),
		Loading:        t.loader.Loading(),
		Mobile:         t.mobile,
		SafetyReloaded: t.safety.Fired(),
	}
}

func (t *Tab) History() []pagestate.Entry {
	return t.history.Entries()
}

// Data returns the last dataset loaded for the tab.
func (t *Tab) Data() (dataloader.Dataset, bool) {
	return t.loader.Data()
}

// Navigate applies a browser back/forward to u.
func (t *Tab) Navigate(ctx context.Context, u *url.URL) pagestate.Location {
	t.mu.Lock()
	t.url = cloneURL(u)
	t.mu.Unlock()
	return t.pages.Navigate(ctx, u)
}

// Fire applies a UI trigger using the tab's current identity.
func (t *Tab) Fire(ctx context.Context, trigger pagestate.Trigger) (pagestate.Location, error) {
	if !trigger.UserInitiated() {
		return t.pages.Location(), pagestate.ErrInvalidTrigger
	}
	if _, err := t.pages.Fire(ctx, trigger, t.facts(ctx)); err != nil {
		return t.pages.Location(), err
	}
	return t.pages.Location(), nil
}

func (t *Tab) SetView(v pagestate.View) (pagestate.Location, error) {
	if err := t.pages.SetView(v); err != nil {
		return t.pages.Location(), err
	}
	return t.pages.Location(), nil
}

// Profiles lists the profiles the signed-in principal can switch to.
func (t *Tab) Profiles(ctx context.Context) ([]profile.Profile, error) {
	pid := t.state.PrincipalID()
	if pid == "" {
		return nil, ErrNotSignedIn
	}
	return t.switcher.List(ctx, pid)
}

// SwitchProfile moves the active-profile pointer and reloads the tab as if
// the principal had just signed in. On error the tab is untouched.
func (t *Tab) SwitchProfile(ctx context.Context, profileID string) (profile.Profile, error) {
	pid := t.state.PrincipalID()
	if pid == "" {
		t.rec.RecordSwitch(false)
		return profile.Profile{}, ErrNotSignedIn
	}
	p, err := t.switcher.Switch(ctx, pid, profileID)
	if err != nil {
		t.rec.RecordSwitch(false)
		return profile.Profile{}, err
	}
	t.rec.RecordSwitch(true)
	if err := t.Reload(ctx); err != nil {
		return p, err
	}
	return p, nil
}

// Reload discards all tab state and starts over from the current URL, as a
// full page reload would.
func (t *Tab) Reload(ctx context.Context) error {
	t.state.Reset()
	t.loader.Reset()

	u := t.reloadURL()
	t.mu.Lock()
	t.url = u
	t.mu.Unlock()
	loc := t.pages.Reload(u)
	t.safety.Arm(ctx)
	t.log.InfoContext(ctx, "tab reloaded", logger.Page(string(loc.Page)))

	if _, err := t.replay(ctx, authevents.InitialSession); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (t *Tab) Snapshot() Snapshot {
	return t.state.Snapshot()
}

func (t *Tab) ForceReload(ctx context.Context) error {
	return t.Reload(ctx)
}

func (t *Tab) ClearDedup(ctx context.Context) error {
	return t.dedup.Clear(ctx)
}

func (t *Tab) ResumeEvents() {
	t.state.ResumeEvents()
}

func (t *Tab) Replay(ctx context.Context, kind authevents.Kind) (Outcome, error) {
	if !kind.Valid() {
		return "", authevents.ErrInvalidEvent
	}
	return t.replay(ctx, kind)
}

func (t *Tab) replay(ctx context.Context, kind authevents.Kind) (Outcome, error) {
	ev := authevents.Event{Kind: kind, At: t.now()}
	if kind != authevents.SignedOut {
		sess, err := t.source.CurrentSession(ctx)
		if err != nil {
			return "", err
		}
		ev.Session = sess
	}
	return t.recon.HandleEvent(ctx, ev)
}

func (t *Tab) facts(ctx context.Context) pagestate.Facts {
	f := pagestate.Facts{InviteFlow: t.inviteFlow()}
	if snap := t.state.Snapshot(); snap.Identity != nil {
		id := *snap.Identity
		f.IsStartup = id.Role == profile.RoleStartup
		f.ProfileComplete = id.Complete()
		if !id.Placeholder() {
			if ok, err := t.profiles.IsComplete(ctx, id.ID); err == nil {
				f.ProfileComplete = ok
			}
		}
	}
	if sess, err := t.source.CurrentSession(ctx); err == nil && sess != nil {
		f.PasswordSet = sess.PasswordSet
	}
	return f
}

func (t *Tab) inviteFlow() bool {
	return pagestate.IsInviteFlow(t.currentURL())
}

func (t *Tab) currentURL() *url.URL {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneURL(t.url)
}

// reloadURL is the URL the browser would reload: the original one with the
// current page mirrored in and one-shot auth parameters removed.
func (t *Tab) reloadURL() *url.URL {
	u := t.currentURL()
	q := u.Query()
	for _, k := range oneShotParams {
		q.Del(k)
	}
	q.Del(pagestate.ParamView)
	for k, vs := range t.pages.Location().Query() {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u
}

func cloneURL(u *url.URL) *url.URL {
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
