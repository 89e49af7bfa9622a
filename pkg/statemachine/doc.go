// Package statemachine implements a small, generic, guarded finite state
// machine.
//
// States and events are any comparable types (typically string enums);
// guards and actions receive a typed payload D. The table maps
// (from, event) to an ordered list of rows, and the first row whose guards
// all pass is applied. Rows registered with WithTransitionFromAny match any
// source state and are consulted after the concrete rows. Jump bypasses the
// table for cases where the state is dictated from outside, such as browser
// history navigation.
//
//	m := statemachine.MustNew[Page, Trigger, Facts](Landing,
//	    statemachine.WithTransition[Page, Trigger, Facts](Login, Dashboard, SignedIn,
//	        statemachine.WithGuards(profileComplete)),
//	    statemachine.WithTransitionFromAny[Page, Trigger, Facts](Login, SignedOut),
//	)
//	next, err := m.Fire(ctx, SignedIn, facts)
//
// Errors distinguish a missing row (IsNoTransitionAvailableError) from rows
// blocked by guards (IsTransitionRejectedError).
package statemachine
