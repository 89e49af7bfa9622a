package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/svc/dataloader"
	"github.com/dmitrymomot/raisekit/svc/profile"
)

// Outcome names what the reconciler did with one event.
type Outcome string

const (
	OutcomeIgnoredRefresh   Outcome = "ignored_refresh"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeAlreadySettled   Outcome = "already_settled"
	OutcomeSignedOut        Outcome = "signed_out"
	OutcomeBusy             Outcome = "busy"
	OutcomeEmailUnconfirmed Outcome = "email_unconfirmed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeNoSession        Outcome = "no_session"
	OutcomeResolving        Outcome = "resolving"
	OutcomeResolved         Outcome = "resolved"
	OutcomeFallback         Outcome = "fallback"
	OutcomeSuperseded       Outcome = "superseded"
)

const defaultResolveTimeout = 15 * time.Second

// Pages is the page machine as driven by the reconciler.
type Pages interface {
	Fire(ctx context.Context, trigger pagestate.Trigger, facts pagestate.Facts) (pagestate.Page, error)
}

// Loader is the data loader as driven by the reconciler.
type Loader interface {
	EnsureLoaded(ctx context.Context, force bool) error
	Reset()
}

// Watchdog retries loading in the background.
type Watchdog interface {
	Run(ctx context.Context) dataloader.Report
}

// Reconciler turns the auth event stream of one tab into at most one
// identity resolution per real session change.
type Reconciler struct {
	state    *Store
	source   authevents.Source
	profiles profile.Store
	pages    Pages
	loader   Loader
	watchdog Watchdog
	dedup    DedupGuard
	locator  *dataloader.StartupLocator

	fallback   profile.Role
	timeout    time.Duration
	inviteFlow func() bool
	log        *slog.Logger
	rec        metrics.Recorder

	bg      context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	unsub   authevents.Unsubscribe
	watched uint64
}

type Option func(*Reconciler)

func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Reconciler) {
		if rec != nil {
			r.rec = rec
		}
	}
}

// WithFallbackRole sets the role of profiles created from metadata that
// names none.
func WithFallbackRole(role profile.Role) Option {
	return func(r *Reconciler) {
		if role.Valid() {
			r.fallback = role
		}
	}
}

func WithResolveTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithInviteFlow reports whether the tab was opened from an invite link.
func WithInviteFlow(fn func() bool) Option {
	return func(r *Reconciler) { r.inviteFlow = fn }
}

func WithWatchdog(w Watchdog) Option {
	return func(r *Reconciler) { r.watchdog = w }
}

// WithStartupLocator enables the linked-startup check after a startup
// profile's data is loaded.
func WithStartupLocator(l *dataloader.StartupLocator) Option {
	return func(r *Reconciler) { r.locator = l }
}

func New(state *Store, source authevents.Source, profiles profile.Store, pages Pages, loader Loader, dedup DedupGuard, opts ...Option) *Reconciler {
	r := &Reconciler{
		state:      state,
		source:     source,
		profiles:   profiles,
		pages:      pages,
		loader:     loader,
		dedup:      dedup,
		fallback:   profile.DefaultRole,
		timeout:    defaultResolveTimeout,
		inviteFlow: func() bool { return false },
		log:        logger.Discard(),
		rec:        metrics.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.bg, r.cancel = context.WithCancel(context.Background())
	return r
}

// Start subscribes to the auth source. Events are admitted in arrival order
// and resolved in the background, so an event that arrives mid-resolution
// hits the processing guard and is dropped.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsub != nil {
		return
	}
	r.unsub = r.source.Subscribe(func(ctx context.Context, ev authevents.Event) {
		r.Dispatch(ctx, ev)
	})
}

// Stop unsubscribes and waits for background work to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every background resolution, load and watchdog run
// started so far has returned.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// HandleEvent processes ev to completion and reports what happened.
func (r *Reconciler) HandleEvent(ctx context.Context, ev authevents.Event) (Outcome, error) {
	adm, out, err := r.admit(ctx, ev)
	if adm == nil {
		r.done(ctx, ev, out, err)
		return out, err
	}
	out = r.resolve(ctx, adm)
	r.done(ctx, ev, out, nil)
	return out, nil
}

// Dispatch admits ev synchronously and resolves it in the background.
func (r *Reconciler) Dispatch(ctx context.Context, ev authevents.Event) Outcome {
	adm, out, err := r.admit(ctx, ev)
	if adm == nil {
		r.done(ctx, ev, out, err)
		return out
	}
	r.goBackground(func(bg context.Context) {
		r.done(bg, ev, r.resolve(bg, adm), nil)
	})
	return OutcomeResolving
}

type admission struct {
	epoch       uint64
	principalID string
	session     *authevents.Session
}

// admit runs the short-circuits and the synchronous part of a sign-in. A
// nil admission means the event is fully handled.
func (r *Reconciler) admit(ctx context.Context, ev authevents.Event) (*admission, Outcome, error) {
	if ev.Kind == authevents.TokenRefreshed {
		return nil, OutcomeIgnoredRefresh, nil
	}
	snap := r.state.Snapshot()
	if snap.IgnoreEvents && ev.Kind != authevents.SignedOut {
		return nil, OutcomeIgnored, nil
	}

	current, err := r.source.CurrentPrincipalID(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "current principal lookup failed", logger.Error(err))
	}
	if ev.Kind != authevents.SignedOut && snap.Settled() && current != "" &&
		snap.Identity.PrincipalID == current &&
		(ev.PrincipalID() == "" || ev.PrincipalID() == current) {
		return nil, OutcomeAlreadySettled, nil
	}

	if ev.Kind == authevents.SignedOut {
		r.signOut(ctx)
		return nil, OutcomeSignedOut, nil
	}

	principalID := current
	if principalID == "" {
		principalID = ev.PrincipalID()
	}
	if principalID == "" {
		return nil, OutcomeNoSession, nil
	}

	epoch, ok := r.state.TryBeginResolution()
	if !ok {
		return nil, OutcomeBusy, nil
	}

	sess := ev.Session
	if sess == nil || sess.PrincipalID != principalID {
		if cur, err := r.source.CurrentSession(ctx); err == nil && cur != nil {
			sess = cur
		}
	}
	if sess == nil {
		r.state.EndResolution(epoch)
		return nil, OutcomeNoSession, nil
	}

	if !sess.EmailConfirmed {
		r.state.SetError("Please confirm your email address before signing in.")
		r.state.EndResolution(epoch)
		if err := r.source.SignOut(ctx); err != nil {
			r.log.ErrorContext(ctx, "forced sign-out failed", logger.PrincipalID(principalID), logger.Error(err))
		}
		return nil, OutcomeEmailUnconfirmed, ErrEmailNotConfirmed
	}

	if snap.DataLoaded && r.state.EverSettled() && r.dedup.ShouldSuppress(ctx, principalID) {
		r.state.EndResolution(epoch)
		return nil, OutcomeDuplicate, nil
	}

	if err := r.dedup.Record(ctx, principalID); err != nil {
		r.log.WarnContext(ctx, "dedup record failed", logger.PrincipalID(principalID), logger.Error(err))
	}
	if !r.state.SetIdentity(epoch, profile.Minimal(principalID, r.fallbackFor(sess))) {
		return nil, OutcomeSuperseded, nil
	}
	if !r.state.Loaded() {
		r.startLoading(epoch)
	}
	return &admission{epoch: epoch, principalID: principalID, session: sess}, "", nil
}

// resolve looks up or creates the profile and routes the page. The
// processing flag is always released.
func (r *Reconciler) resolve(ctx context.Context, adm *admission) Outcome {
	defer r.state.EndResolution(adm.epoch)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, created, err := r.lookup(ctx, adm)
	if err != nil {
		r.log.WarnContext(ctx, "profile resolution failed, keeping minimal identity",
			logger.PrincipalID(adm.principalID), logger.Error(err))
		return OutcomeFallback
	}
	r.rec.RecordResolution(string(p.Role), created)

	if !r.state.SetIdentity(adm.epoch, p) {
		return OutcomeSuperseded
	}
	r.route(ctx, p, adm.session)
	return OutcomeResolved
}

func (r *Reconciler) lookup(ctx context.Context, adm *admission) (profile.Profile, bool, error) {
	p, err := r.profiles.GetProfileForPrincipal(ctx, adm.principalID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return profile.Profile{}, false, err
	}
	md := profile.WithFallbackRole(adm.session.Metadata, r.fallback)
	p, err = r.profiles.CreateDefaultProfile(ctx, adm.principalID, md)
	if err != nil {
		return profile.Profile{}, false, err
	}
	r.log.InfoContext(ctx, "default profile created",
		logger.PrincipalID(adm.principalID), logger.ProfileID(p.ID), slog.String("role", string(p.Role)))
	return p, true, nil
}

func (r *Reconciler) route(ctx context.Context, p profile.Profile, sess *authevents.Session) {
	complete, err := r.profiles.IsComplete(ctx, p.ID)
	if err != nil {
		complete = p.Complete()
	}
	facts := pagestate.Facts{
		ProfileComplete: complete,
		IsStartup:       p.Role == profile.RoleStartup,
		InviteFlow:      r.inviteFlow(),
		PasswordSet:     sess.PasswordSet,
	}
	page, err := r.pages.Fire(ctx, pagestate.SignedIn, facts)
	if err != nil {
		r.log.DebugContext(ctx, "no page change after sign-in", logger.ProfileID(p.ID), logger.Error(err))
		return
	}
	r.log.DebugContext(ctx, "routed after sign-in", logger.ProfileID(p.ID), logger.Page(string(page)))
}

func (r *Reconciler) signOut(ctx context.Context) {
	r.state.Clear()
	r.loader.Reset()
	// The dedup marker is shared by every tab of the browser and is left to
	// expire. It cannot suppress the next sign-in here because data is no
	// longer loaded.
	if _, err := r.pages.Fire(ctx, pagestate.SignedOut, pagestate.Facts{}); err != nil {
		r.log.ErrorContext(ctx, "sign-out routing failed", logger.Error(err))
	}
}

// startLoading kicks the loader and, once per epoch, the watchdog.
func (r *Reconciler) startLoading(epoch uint64) {
	r.goBackground(func(ctx context.Context) {
		_ = r.loader.EnsureLoaded(ctx, false)
	})

	r.mu.Lock()
	start := r.watchdog != nil && r.watched != epoch
	if start {
		r.watched = epoch
	}
	r.mu.Unlock()
	if start {
		r.goBackground(func(ctx context.Context) {
			rep := r.watchdog.Run(ctx)
			r.log.DebugContext(ctx, "watchdog finished",
				slog.Int("attempts", rep.Attempts), slog.String("reason", string(rep.Reason)))
		})
	}
}

// OnLoaded runs after the loader sets the loaded flag. Startup profiles
// without a linked startup record switch the dashboard to its empty state.
func (r *Reconciler) OnLoaded(_ context.Context, ds dataloader.Dataset) {
	if r.locator == nil || ds.Profile.Role != profile.RoleStartup || ds.Profile.Placeholder() {
		return
	}
	epoch := r.state.Epoch()
	r.goBackground(func(ctx context.Context) {
		_, err := r.locator.Locate(ctx, ds.Profile.ID)
		if !errors.Is(err, dataloader.ErrNoStartupFound) || r.state.Epoch() != epoch {
			return
		}
		if _, err := r.pages.Fire(ctx, pagestate.StartupMissing, pagestate.Facts{}); err != nil {
			r.log.DebugContext(ctx, "startup missing outside dashboard", logger.ProfileID(ds.Profile.ID))
		}
	})
}

func (r *Reconciler) goBackground(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(r.bg)
	}()
}

func (r *Reconciler) fallbackFor(sess *authevents.Session) profile.Role {
	if sess != nil {
		if role, ok := profile.ParseRole(sess.Metadata[profile.MetaRole]); ok {
			return role
		}
	}
	return r.fallback
}

func (r *Reconciler) done(ctx context.Context, ev authevents.Event, out Outcome, err error) {
	r.rec.RecordEvent(string(ev.Kind), string(out))
	attrs := []any{logger.AuthEvent(string(ev.Kind)), logger.Outcome(string(out))}
	if pid := ev.PrincipalID(); pid != "" {
		attrs = append(attrs, logger.PrincipalID(pid))
	}
	if err != nil {
		r.log.WarnContext(ctx, "auth event rejected", append(attrs, logger.Error(err))...)
		return
	}
	r.log.DebugContext(ctx, "auth event handled", attrs...)
}
