package reconciler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

type loadingFlags struct {
	authed atomic.Bool
	loaded atomic.Bool
}

func (f *loadingFlags) Authenticated() bool { return f.authed.Load() }
func (f *loadingFlags) Loaded() bool        { return f.loaded.Load() }

type fakeTimer struct {
	delays  []time.Duration
	pending func()
	stopped int
}

func (ft *fakeTimer) after(d time.Duration, f func()) func() bool {
	ft.delays = append(ft.delays, d)
	ft.pending = f
	return func() bool {
		ft.stopped++
		return true
	}
}

func (ft *fakeTimer) fire() {
	f := ft.pending
	ft.pending = nil
	f()
}

func TestSafetyNet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mobile     bool
		authed     bool
		loaded     bool
		wantArmed  bool
		wantReload int
	}{
		{"mobile stalled", true, true, false, true, 1},
		{"mobile loaded in time", true, true, true, true, 0},
		{"mobile signed out", true, false, false, true, 0},
		{"desktop", false, true, false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			flags := &loadingFlags{}
			flags.authed.Store(tt.authed)
			flags.loaded.Store(tt.loaded)
			timer := &fakeTimer{}
			var reloads int
			net := reconciler.NewSafetyNet(flags, tt.mobile, func(context.Context) { reloads++ },
				reconciler.WithAfterFunc(timer.after))

			require.Equal(t, tt.wantArmed, net.Arm(ctx))
			if !tt.wantArmed {
				assert.Empty(t, timer.delays)
				return
			}
			assert.Equal(t, []time.Duration{reconciler.DefaultSafetyNetDelay}, timer.delays)
			timer.fire()
			assert.Equal(t, tt.wantReload, reloads)
			assert.Equal(t, tt.wantReload == 1, net.Fired())
		})
	}
}

func TestSafetyNet_FiresAtMostOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	flags := &loadingFlags{}
	flags.authed.Store(true)
	timer := &fakeTimer{}
	var reloads int
	net := reconciler.NewSafetyNet(flags, true, func(context.Context) { reloads++ },
		reconciler.WithAfterFunc(timer.after), reconciler.WithSafetyNetDelay(time.Second))

	require.True(t, net.Arm(ctx))
	assert.False(t, net.Arm(ctx), "already pending")
	timer.fire()
	assert.Equal(t, 1, reloads)

	assert.False(t, net.Arm(ctx), "guard survives the reload")
	assert.Equal(t, []time.Duration{time.Second}, timer.delays)
}

func TestSafetyNet_Disarm(t *testing.T) {
	t.Parallel()

	flags := &loadingFlags{}
	timer := &fakeTimer{}
	net := reconciler.NewSafetyNet(flags, true, func(context.Context) {}, reconciler.WithAfterFunc(timer.after))

	require.True(t, net.Arm(context.Background()))
	net.Disarm()
	net.Disarm()
	assert.Equal(t, 1, timer.stopped)
	assert.True(t, net.Arm(context.Background()), "re-armable after disarm")
}
