package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Guard decides whether a transition may be taken for the given data.
type Guard[S, E comparable, D any] func(ctx context.Context, from S, event E, data D) bool

// Action runs before the state changes. A non-nil error aborts the transition.
type Action[S, E comparable, D any] func(ctx context.Context, from, to S, event E, data D) error

// Listener is notified after every applied state change, including jumps.
type Listener[S, E comparable] func(from, to S, event E, forced bool)

// Transition is one row of the transition table.
type Transition[S, E comparable, D any] struct {
	From    S
	To      S
	Event   E
	AnyFrom bool
	Guards  []Guard[S, E, D]
	Actions []Action[S, E, D]
}

// Machine is a guarded finite state machine keyed by comparable state and
// event types. Rows registered for a concrete source state are evaluated
// before rows registered with WithTransitionFromAny; within each group the
// first row whose guards all pass wins.
type Machine[S, E comparable, D any] struct {
	mu        sync.RWMutex
	initial   S
	current   S
	table     map[S]map[E][]Transition[S, E, D]
	wildcard  map[E][]Transition[S, E, D]
	listeners []Listener[S, E]
}

func New[S, E comparable, D any](initial S, opts ...Option[S, E, D]) (*Machine[S, E, D], error) {
	m := &Machine[S, E, D]{
		initial:  initial,
		current:  initial,
		table:    make(map[S]map[E][]Transition[S, E, D]),
		wildcard: make(map[E][]Transition[S, E, D]),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on a misconfigured table.
func MustNew[S, E comparable, D any](initial S, opts ...Option[S, E, D]) *Machine[S, E, D] {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

func (m *Machine[S, E, D]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Machine[S, E, D]) add(t Transition[S, E, D]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.AnyFrom {
		m.wildcard[t.Event] = append(m.wildcard[t.Event], t)
		return
	}
	if _, ok := m.table[t.From]; !ok {
		m.table[t.From] = make(map[E][]Transition[S, E, D])
	}
	m.table[t.From][t.Event] = append(m.table[t.From][t.Event], t)
}

// OnChange registers a listener. Listeners run synchronously after the lock
// is released, in registration order.
func (m *Machine[S, E, D]) OnChange(l Listener[S, E]) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Fire applies the first matching transition for event and returns the new
// current state.
func (m *Machine[S, E, D]) Fire(ctx context.Context, event E, data D) (S, error) {
	m.mu.Lock()

	from := m.current
	t, err := m.match(ctx, from, event, data)
	if err != nil {
		m.mu.Unlock()
		return from, err
	}

	for _, action := range t.Actions {
		if err := action(ctx, from, t.To, event, data); err != nil {
			m.mu.Unlock()
			return from, fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = t.To
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l(from, t.To, event, false)
	}
	return t.To, nil
}

// CanFire reports whether Fire would succeed, without running actions.
func (m *Machine[S, E, D]) CanFire(ctx context.Context, event E, data D) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.match(ctx, m.current, event, data)
	return err == nil
}

// Jump moves to state unconditionally, bypassing the table. It exists for
// rehydrating from an external source of truth such as a URL.
func (m *Machine[S, E, D]) Jump(to S, event E) S {
	m.mu.Lock()
	from := m.current
	m.current = to
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l(from, to, event, true)
	}
	return from
}

func (m *Machine[S, E, D]) Reset() {
	m.mu.Lock()
	m.current = m.initial
	m.mu.Unlock()
}

func (m *Machine[S, E, D]) match(ctx context.Context, from S, event E, data D) (*Transition[S, E, D], error) {
	candidates := m.table[from][event]
	candidates = append(candidates[:len(candidates):len(candidates)], m.wildcard[event]...)
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(from, event)
	}

	for i := range candidates {
		if passes(ctx, candidates[i].Guards, from, event, data) {
			return &candidates[i], nil
		}
	}
	return nil, NewErrTransitionRejected(from, event)
}

func passes[S, E comparable, D any](ctx context.Context, guards []Guard[S, E, D], from S, event E, data D) bool {
	for _, g := range guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
