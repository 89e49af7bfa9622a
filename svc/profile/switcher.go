package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/raisekit/pkg/logger"
)

// Switcher moves a principal's active-profile pointer. It only touches the
// store; resetting tab state and reloading is the caller's job.
type Switcher struct {
	store Store
	log   *slog.Logger
}

type SwitcherOption func(*Switcher)

func WithSwitcherLogger(l *slog.Logger) SwitcherOption {
	return func(s *Switcher) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSwitcher(store Store, opts ...SwitcherOption) *Switcher {
	s := &Switcher{store: store, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Switch makes profileID the active profile of principalID and returns it.
// On error the pointer is unchanged.
func (s *Switcher) Switch(ctx context.Context, principalID, profileID string) (Profile, error) {
	if principalID == "" {
		return Profile{}, ErrEmptyPrincipal
	}
	target, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return Profile{}, fmt.Errorf("switch profile: %w", err)
	}
	if target.PrincipalID != principalID {
		s.log.WarnContext(ctx, "profile switch rejected",
			logger.PrincipalID(principalID), logger.ProfileID(profileID))
		return Profile{}, fmt.Errorf("switch profile: %w", ErrNotOwned)
	}
	if err := s.store.SetActiveProfile(ctx, principalID, profileID); err != nil {
		return Profile{}, fmt.Errorf("switch profile: %w", err)
	}

	s.log.InfoContext(ctx, "active profile switched",
		logger.PrincipalID(principalID), logger.ProfileID(profileID),
		slog.String("role", string(target.Role)))
	return target, nil
}

// List returns the profiles the principal may switch between.
func (s *Switcher) List(ctx context.Context, principalID string) ([]Profile, error) {
	return s.store.ListProfilesForPrincipal(ctx, principalID)
}
