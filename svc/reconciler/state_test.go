package reconciler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/svc/profile"
	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

func TestStore_SettleAndEpoch(t *testing.T) {
	t.Parallel()

	s := reconciler.NewStore()
	epoch, ok := s.TryBeginResolution()
	require.True(t, ok)
	_, ok = s.TryBeginResolution()
	assert.False(t, ok, "one resolution at a time")

	assert.False(t, s.MarkLoaded(epoch), "not authenticated yet")
	require.True(t, s.SetIdentity(epoch, profile.Minimal("P1", profile.RoleInvestor)))
	assert.False(t, s.Snapshot().IgnoreEvents)
	assert.False(t, s.EverSettled())

	require.True(t, s.MarkLoaded(epoch))
	snap := s.Snapshot()
	assert.True(t, snap.Settled())
	assert.True(t, snap.IgnoreEvents)
	assert.True(t, snap.Processing)
	assert.True(t, s.EverSettled())

	s.EndResolution(epoch)
	assert.False(t, s.Snapshot().Processing)

	s.ResumeEvents()
	assert.False(t, s.Snapshot().IgnoreEvents)
	assert.True(t, s.Snapshot().DataLoaded)
}

func TestStore_ClearDiscardsLateWrites(t *testing.T) {
	t.Parallel()

	s := reconciler.NewStore()
	epoch, ok := s.TryBeginResolution()
	require.True(t, ok)
	require.True(t, s.SetIdentity(epoch, profile.Minimal("P1", "")))
	s.SetError("boom")

	s.Clear()
	snap := s.Snapshot()
	assert.Nil(t, snap.Identity)
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.Processing, "sign-out releases the processing flag")
	assert.Equal(t, epoch+1, snap.Epoch)
	assert.Equal(t, "boom", snap.LastError)

	assert.False(t, s.SetIdentity(epoch, profile.Minimal("P1", "")))
	assert.False(t, s.MarkLoaded(epoch))
	s.EndResolution(epoch)
	assert.Nil(t, s.Snapshot().Identity)
}

func TestStore_ResetStartsFresh(t *testing.T) {
	t.Parallel()

	s := reconciler.NewStore()
	epoch, _ := s.TryBeginResolution()
	s.SetIdentity(epoch, profile.Minimal("P1", ""))
	s.MarkLoaded(epoch)
	s.EndResolution(epoch)
	s.SetError("stale")
	require.True(t, s.EverSettled())

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, reconciler.Snapshot{Epoch: epoch + 1}, snap)
	assert.False(t, s.EverSettled())
	assert.Empty(t, s.PrincipalID())
}
