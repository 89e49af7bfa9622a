package dataloader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/svc/profile"
)

const (
	locateAttempts = 3
	locateInterval = 2 * time.Second
)

// StartupLocator looks up the startup linked to a startup-role profile. The
// record may be written shortly after the profile, so a miss is retried a
// bounded number of times before it is reported as ErrNoStartupFound.
type StartupLocator struct {
	store    profile.StartupStore
	interval time.Duration
	log      *slog.Logger
}

type LocatorOption func(*StartupLocator)

// WithInterval sets the wait between attempts. Values under two seconds are
// only meant for tests.
func WithInterval(d time.Duration) LocatorOption {
	return func(l *StartupLocator) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLocatorLogger(lg *slog.Logger) LocatorOption {
	return func(l *StartupLocator) {
		if lg != nil {
			l.log = lg
		}
	}
}

func NewStartupLocator(store profile.StartupStore, opts ...LocatorOption) *StartupLocator {
	l := &StartupLocator{store: store, interval: locateInterval, log: logger.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate makes up to three attempts. Lookup failures other than not-found
// are retried the same way; ctx cancellation ends the search early.
func (l *StartupLocator) Locate(ctx context.Context, profileID string) (profile.Startup, error) {
	var (
		found   profile.Startup
		attempt int
	)
	b := retry.WithMaxRetries(locateAttempts-1, retry.NewConstant(l.interval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		st, err := l.store.FindStartupByProfile(ctx, profileID)
		if err != nil {
			l.log.DebugContext(ctx, "startup lookup missed",
				logger.ProfileID(profileID), logger.Attempt(attempt), logger.Error(err))
			return retry.RetryableError(err)
		}
		found = st
		return nil
	})
	if err == nil {
		return found, nil
	}
	if ctx.Err() != nil {
		return profile.Startup{}, ctx.Err()
	}
	if errors.Is(err, profile.ErrNotFound) {
		return profile.Startup{}, ErrNoStartupFound
	}
	return profile.Startup{}, errors.Join(ErrNoStartupFound, err)
}
