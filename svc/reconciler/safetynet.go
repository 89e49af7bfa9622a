package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
)

const DefaultSafetyNetDelay = 20 * time.Second

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// loadingState is what the safety net inspects when its timer fires.
type loadingState interface {
	Authenticated() bool
	Loaded() bool
}

// SafetyNet reloads a mobile tab once when it is still on the loading screen
// after a fixed delay. The guard lives as long as the tab, so a reload that
// stalls again does not reload a second time.
type SafetyNet struct {
	state  loadingState
	mobile bool
	delay  time.Duration
	reload func(ctx context.Context)
	after  AfterFunc
	log    *slog.Logger
	rec    metrics.Recorder

	autoReloadGuard atomic.Bool

	mu   sync.Mutex
	stop func() bool
}

type SafetyNetOption func(*SafetyNet)

func WithSafetyNetDelay(d time.Duration) SafetyNetOption {
	return func(s *SafetyNet) {
		if d > 0 {
			s.delay = d
		}
	}
}

func WithAfterFunc(fn AfterFunc) SafetyNetOption {
	return func(s *SafetyNet) {
		if fn != nil {
			s.after = fn
		}
	}
}

func WithSafetyNetLogger(l *slog.Logger) SafetyNetOption {
	return func(s *SafetyNet) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSafetyNetRecorder(r metrics.Recorder) SafetyNetOption {
	return func(s *SafetyNet) {
		if r != nil {
			s.rec = r
		}
	}
}

func NewSafetyNet(state loadingState, mobile bool, reload func(ctx context.Context), opts ...SafetyNetOption) *SafetyNet {
	s := &SafetyNet{
		state:  state,
		mobile: mobile,
		delay:  DefaultSafetyNetDelay,
		reload: reload,
		after:  timeAfterFunc,
		log:    logger.Discard(),
		rec:    metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm starts the timer. It reports false on desktop agents, after the net
// has already fired, or while a timer is pending.
func (s *SafetyNet) Arm(ctx context.Context) bool {
	if !s.mobile || s.autoReloadGuard.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	s.stop = s.after(s.delay, func() { s.fire(ctx) })
	return true
}

// Disarm cancels a pending timer.
func (s *SafetyNet) Disarm() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Fired reports whether the net has reloaded the tab.
func (s *SafetyNet) Fired() bool {
	return s.autoReloadGuard.Load()
}

func (s *SafetyNet) fire(ctx context.Context) {
	s.mu.Lock()
	s.stop = nil
	s.mu.Unlock()

	if !s.state.Authenticated() || s.state.Loaded() {
		return
	}
	if !s.autoReloadGuard.CompareAndSwap(false, true) {
		return
	}
	s.rec.RecordSafetyReload()
	s.log.WarnContext(ctx, "loading stalled, reloading tab", logger.Duration(s.delay))
	s.reload(ctx)
}
