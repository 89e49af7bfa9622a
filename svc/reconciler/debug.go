package reconciler

import (
	"context"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
)

// DebugController exposes the operator actions that inspect or nudge a
// tab's session state. It is only reachable when debug mode is enabled.
type DebugController interface {
	Snapshot() Snapshot
	// ForceReload resets the tab and replays its current session.
	ForceReload(ctx context.Context) error
	// ClearDedup forgets the last recorded sign-in.
	ClearDedup(ctx context.Context) error
	// ResumeEvents clears the settle flag so the next event is processed.
	ResumeEvents()
	// Replay feeds a synthetic event built from the current session.
	Replay(ctx context.Context, kind authevents.Kind) (Outcome, error)
}

var _ DebugController = (*Tab)(nil)
