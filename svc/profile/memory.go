package profile

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node demos.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	active   map[string]string
	startups map[string]Startup
	now      func() time.Time
	newID    func() string
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces uuid.NewString for new profile ids.
func WithIDGenerator(fn func() string) MemoryOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		profiles: make(map[string]Profile),
		active:   make(map[string]string),
		startups: make(map[string]Startup),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put inserts or replaces a profile as is. It does not touch the pointer.
func (s *MemoryStore) Put(p Profile) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.mu.Lock()
	s.profiles[p.ID] = p
	s.mu.Unlock()
}

func (s *MemoryStore) GetProfileForPrincipal(_ context.Context, principalID string) (Profile, error) {
	if principalID == "" {
		return Profile{}, ErrEmptyPrincipal
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.active[principalID]; ok {
		if p, ok := s.profiles[id]; ok && p.PrincipalID == principalID {
			return p, nil
		}
	}
	owned := s.owned(principalID)
	if len(owned) == 0 {
		return Profile{}, ErrNotFound
	}
	return owned[0], nil
}

func (s *MemoryStore) CreateDefaultProfile(_ context.Context, principalID string, metadata map[string]string) (Profile, error) {
	if principalID == "" {
		return Profile{}, ErrEmptyPrincipal
	}
	p := newDefault(s.newID(), principalID, metadata, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	if _, ok := s.active[principalID]; !ok {
		s.active[principalID] = p.ID
	}
	return p, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, profileID string) (Profile, error) {
	if profileID == "" {
		return Profile{}, ErrEmptyProfileID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) IsComplete(ctx context.Context, profileID string) (bool, error) {
	p, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return false, err
	}
	return p.Complete(), nil
}

func (s *MemoryStore) ListProfilesForPrincipal(_ context.Context, principalID string) ([]Profile, error) {
	if principalID == "" {
		return nil, ErrEmptyPrincipal
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned(principalID), nil
}

func (s *MemoryStore) SetActiveProfile(_ context.Context, principalID, profileID string) error {
	if principalID == "" {
		return ErrEmptyPrincipal
	}
	if profileID == "" {
		return ErrEmptyProfileID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return ErrNotFound
	}
	if p.PrincipalID != principalID {
		return ErrNotOwned
	}
	s.active[principalID] = profileID
	return nil
}

// ActiveProfileID returns the raw pointer value.
func (s *MemoryStore) ActiveProfileID(principalID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[principalID]
	return id, ok
}

// owned returns the principal's profiles oldest first. Callers hold the lock.
func (s *MemoryStore) owned(principalID string) []Profile {
	var out []Profile
	for _, p := range s.profiles {
		if p.PrincipalID == principalID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Profile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

var _ Store = (*MemoryStore)(nil)
