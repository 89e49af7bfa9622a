package statemachine

// Option configures a Machine during construction.
type Option[S, E comparable, D any] func(*Machine[S, E, D]) error

// TransitionOption attaches guards or actions to a single row.
type TransitionOption[S, E comparable, D any] func(*Transition[S, E, D])

func WithTransition[S, E comparable, D any](from, to S, event E, opts ...TransitionOption[S, E, D]) Option[S, E, D] {
	return func(m *Machine[S, E, D]) error {
		t := Transition[S, E, D]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		m.add(t)
		return nil
	}
}

// WithTransitionFrom registers the same row for several source states.
func WithTransitionFrom[S, E comparable, D any](from []S, to S, event E, opts ...TransitionOption[S, E, D]) Option[S, E, D] {
	return func(m *Machine[S, E, D]) error {
		if len(from) == 0 {
			return ErrNoSourceStates
		}
		for _, f := range from {
			if err := WithTransition[S, E, D](f, to, event, opts...)(m); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithTransitionFromAny registers a row that matches from every state.
func WithTransitionFromAny[S, E comparable, D any](to S, event E, opts ...TransitionOption[S, E, D]) Option[S, E, D] {
	return func(m *Machine[S, E, D]) error {
		t := Transition[S, E, D]{To: to, Event: event, AnyFrom: true}
		for _, opt := range opts {
			opt(&t)
		}
		m.add(t)
		return nil
	}
}

// WithGuards adds guards to a row; nil guards are skipped.
func WithGuards[S, E comparable, D any](guards ...Guard[S, E, D]) TransitionOption[S, E, D] {
	return func(t *Transition[S, E, D]) {
		for _, g := range guards {
			if g != nil {
				t.Guards = append(t.Guards, g)
			}
		}
	}
}

// WithActions adds actions to a row; nil actions are skipped.
func WithActions[S, E comparable, D any](actions ...Action[S, E, D]) TransitionOption[S, E, D] {
	return func(t *Transition[S, E, D]) {
		for _, a := range actions {
			if a != nil {
				t.Actions = append(t.Actions, a)
			}
		}
	}
}
