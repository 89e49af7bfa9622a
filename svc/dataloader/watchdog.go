package dataloader

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
)

const (
	watchdogBase     = time.Second
	watchdogAttempts = 6
)

// StopReason tells why a watchdog run ended.
type StopReason string

const (
	StopLoaded     StopReason = "loaded"
	StopSignedOut  StopReason = "signed_out"
	StopSuperseded StopReason = "superseded"
	StopExhausted  StopReason = "exhausted"
	StopCancelled  StopReason = "cancelled"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EnsureLoader is the loader operation the watchdog drives.
type EnsureLoader interface {
	EnsureLoaded(ctx context.Context, force bool) error
}

// Report summarizes a watchdog run.
type Report struct {
	Attempts int
	Delays   []time.Duration
	Reason   StopReason
}

// Watchdog retries a forced load on an exponential schedule (1, 2, 4, 8,
// 16 and 32 seconds) while data is not loaded and the session stays
// authenticated within the epoch it started in.
type Watchdog struct {
	state   State
	loader  EnsureLoader
	sleep   Sleeper
	backoff func() retry.Backoff
	log     *slog.Logger
	rec     metrics.Recorder
}

type WatchdogOption func(*Watchdog)

func WithSleeper(s Sleeper) WatchdogOption {
	return func(w *Watchdog) {
		if s != nil {
			w.sleep = s
		}
	}
}

func WithWatchdogLogger(l *slog.Logger) WatchdogOption {
	return func(w *Watchdog) {
		if l != nil {
			w.log = l
		}
	}
}

func WithWatchdogRecorder(r metrics.Recorder) WatchdogOption {
	return func(w *Watchdog) {
		if r != nil {
			w.rec = r
		}
	}
}

func NewWatchdog(state State, loader EnsureLoader, opts ...WatchdogOption) *Watchdog {
	w := &Watchdog{
		state:  state,
		loader: loader,
		sleep:  sleep,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(watchdogAttempts, retry.NewExponential(watchdogBase))
		},
		log: logger.Discard(),
		rec: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until the data is loaded, the session ends, the epoch changes,
// the schedule is exhausted or ctx is done.
func (w *Watchdog) Run(ctx context.Context) Report {
	epoch := w.state.Epoch()
	b := w.backoff()
	var rep Report

	for {
		if reason, stop := w.check(epoch); stop {
			rep.Reason = reason
			return rep
		}

		d, done := b.Next()
		if done {
			rep.Reason = StopExhausted
			w.log.WarnContext(ctx, "data load watchdog exhausted", slog.Int("attempts", rep.Attempts))
			return rep
		}
		if err := w.sleep(ctx, d); err != nil {
			rep.Reason = StopCancelled
			return rep
		}
		if reason, stop := w.check(epoch); stop {
			rep.Reason = reason
			return rep
		}

		rep.Attempts++
		rep.Delays = append(rep.Delays, d)
		w.rec.RecordWatchdogAttempt(rep.Attempts)
		if err := w.loader.EnsureLoaded(ctx, true); err != nil {
			w.log.DebugContext(ctx, "watchdog load attempt failed",
				logger.Attempt(rep.Attempts), logger.Error(err))
		}
	}
}

func (w *Watchdog) check(epoch uint64) (StopReason, bool) {
	switch {
	case w.state.Epoch() != epoch:
		return StopSuperseded, true
	case w.state.Loaded():
		return StopLoaded, true
	case !w.state.Authenticated():
		return StopSignedOut, true
	}
	return "", false
}
