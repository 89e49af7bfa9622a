package pagestate

import (
	"context"
	"net/url"
	"sync"

	"github.com/dmitrymomot/raisekit/pkg/statemachine"
)

type (
	fsm    = statemachine.Machine[Page, Trigger, Facts]
	option = statemachine.Option[Page, Trigger, Facts]
	guard  = statemachine.Guard[Page, Trigger, Facts]
)

var (
	entryPages = []Page{Landing, Login, Register, CompleteRegistration}
	appPages   = []Page{Dashboard, Subscription, Payment}
	// signed_in never pulls a user off reset-password; they leave it with password_set.
	routablePages = []Page{Landing, Login, Register, CompleteRegistration, Dashboard, Subscription, Payment}
)

func needsPassword(_ context.Context, _ Page, _ Trigger, f Facts) bool {
	return f.InviteFlow && !f.PasswordSet
}

func incomplete(_ context.Context, _ Page, _ Trigger, f Facts) bool { return !f.ProfileComplete }
func complete(_ context.Context, _ Page, _ Trigger, f Facts) bool   { return f.ProfileComplete }
func startup(_ context.Context, _ Page, _ Trigger, f Facts) bool    { return f.IsStartup }

func from(pages []Page, to Page, t Trigger, guards ...guard) option {
	return statemachine.WithTransitionFrom(pages, to, t, statemachine.WithGuards(guards...))
}

func one(src, to Page, t Trigger, guards ...guard) option {
	return statemachine.WithTransition(src, to, t, statemachine.WithGuards(guards...))
}

// table is the page transition table. Row order matters: the first row whose
// guards pass wins.
func table() []option {
	opts := []option{
		statemachine.WithTransitionFromAny[Page, Trigger, Facts](ResetPassword, RecoveryDetected),
		statemachine.WithTransitionFromAny[Page, Trigger, Facts](Login, SignedOut),

		from(routablePages, ResetPassword, SignedIn, needsPassword),
		from(routablePages, CompleteRegistration, SignedIn, incomplete),
		from(entryPages, Dashboard, SignedIn, complete),

		one(ResetPassword, CompleteRegistration, PasswordSet, incomplete),
		one(ResetPassword, Dashboard, PasswordSet, complete),

		one(CompleteRegistration, Subscription, RegistrationSubmitted, startup),
		one(CompleteRegistration, Dashboard, RegistrationSubmitted),

		one(Subscription, Dashboard, PlanChosen),
		one(Subscription, Payment, CheckoutStarted),
		one(Payment, Dashboard, PaymentCompleted),

		one(Dashboard, Dashboard, StartupMissing),

		from([]Page{Landing, Register}, Login, LoginRequested),
		from([]Page{Landing, Login}, Register, RegisterRequested),
	}
	for _, p := range appPages {
		opts = append(opts, one(p, p, SignedIn, complete))
	}
	return opts
}

// Machine is the page/view state machine for one tab. Transitions driven by
// the auth lifecycle replace the current history entry; user transitions
// push a new one; navigation jumps write nothing because the browser has
// already moved.
type Machine struct {
	fsm      *fsm
	resolver Resolver
	history  History

	mu        sync.RWMutex
	view      View
	noStartup bool
}

func New(initial Location, resolver Resolver, history History) *Machine {
	if history == nil {
		history = NewMemoryHistory()
	}
	view := initial.View
	if !view.Valid() {
		view = resolver.DefaultView
	}
	if !view.Valid() {
		view = ViewDashboard
	}

	m := &Machine{
		fsm:      statemachine.MustNew(initial.Page, table()...),
		resolver: resolver,
		history:  history,
		view:     view,
	}
	m.fsm.OnChange(m.changed)
	history.Replace(m.Location())
	return m
}

// Load builds a Machine from the URL of a fresh page load.
func Load(u *url.URL, resolver Resolver, history History) *Machine {
	return New(resolver.Initial(u), resolver, history)
}

func (m *Machine) Current() Page {
	return m.fsm.Current()
}

func (m *Machine) Location() Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc := Location{Page: m.fsm.Current()}
	if loc.Page == Dashboard {
		loc.View = m.view
		loc.NoStartup = m.noStartup
	}
	return loc
}

// Fire applies trigger with facts and returns the resulting page.
func (m *Machine) Fire(ctx context.Context, trigger Trigger, facts Facts) (Page, error) {
	return m.fsm.Fire(ctx, trigger, facts)
}

func (m *Machine) CanFire(ctx context.Context, trigger Trigger, facts Facts) bool {
	return m.fsm.CanFire(ctx, trigger, facts)
}

// Navigate handles browser back/forward: recovery markers force
// reset-password, otherwise the page comes from the URL.
func (m *Machine) Navigate(ctx context.Context, u *url.URL) Location {
	if HasRecoveryMarkers(u) {
		_, _ = m.fsm.Fire(ctx, RecoveryDetected, Facts{})
		return m.Location()
	}

	loc := m.resolver.Rehydrate(u)
	m.mu.Lock()
	if loc.View.Valid() {
		m.view = loc.View
	}
	m.mu.Unlock()
	m.fsm.Jump(loc.Page, Navigated)
	return m.Location()
}

// Reload re-resolves the location from u as on a fresh page load and
// replaces the current history entry.
func (m *Machine) Reload(u *url.URL) Location {
	loc := m.resolver.Initial(u)
	m.mu.Lock()
	if loc.View.Valid() {
		m.view = loc.View
	}
	m.mu.Unlock()
	m.fsm.Jump(loc.Page, Navigated)

	cur := m.Location()
	m.history.Replace(cur)
	return cur
}

// SetView switches the dashboard layout.
func (m *Machine) SetView(v View) error {
	if !v.Valid() {
		return ErrInvalidView
	}
	m.mu.Lock()
	m.view = v
	m.mu.Unlock()
	if m.fsm.Current() == Dashboard {
		m.history.Replace(m.Location())
	}
	return nil
}

func (m *Machine) changed(_, to Page, t Trigger, forced bool) {
	m.mu.Lock()
	m.noStartup = to == Dashboard && t == StartupMissing
	m.mu.Unlock()

	if forced {
		return
	}
	loc := m.Location()
	if t.UserInitiated() {
		m.history.Push(loc)
		return
	}
	m.history.Replace(loc)
}
