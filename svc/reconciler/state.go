package reconciler

import (
	"sync"

	"github.com/dmitrymomot/raisekit/svc/profile"
)

// Snapshot is a value copy of a tab's reconciler state.
type Snapshot struct {
	Identity        *profile.Profile `json:"identity"`
	IsAuthenticated bool             `json:"is_authenticated"`
	DataLoaded      bool             `json:"data_loaded"`
	IgnoreEvents    bool             `json:"ignore_events"`
	Processing      bool             `json:"processing"`
	Epoch           uint64           `json:"epoch"`
	LastError       string           `json:"last_error,omitempty"`
}

// Settled reports whether the identity is established and its data loaded.
func (s Snapshot) Settled() bool {
	return s.IsAuthenticated && s.Identity != nil && s.DataLoaded
}

// Store is the single authoritative state container of a tab. Every async
// callback holds the same *Store and reads through it, so there is no second
// copy of any flag to keep in sync.
//
// Epoch increases on every reset. Writers that started before a reset pass
// their epoch back and their writes are discarded.
type Store struct {
	mu           sync.RWMutex
	identity     *profile.Profile
	authed       bool
	loaded       bool
	ignoreEvents bool
	processing   bool
	epoch        uint64
	lastErr      string
	// everSettled is false until the tab settles for the first time in its
	// page life. Duplicate suppression is bypassed until then.
	everSettled bool
}

func NewStore() *Store {
	return &Store{epoch: 1}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		IsAuthenticated: s.authed,
		DataLoaded:      s.loaded,
		IgnoreEvents:    s.ignoreEvents,
		Processing:      s.processing,
		Epoch:           s.epoch,
		LastError:       s.lastErr,
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

func (s *Store) PrincipalID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.PrincipalID
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// EverSettled reports whether the tab has settled at least once since load.
func (s *Store) EverSettled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.everSettled
}

// MarkLoaded sets the loaded flag for epoch. It refuses stale epochs and
// unauthenticated sessions.
func (s *Store) MarkLoaded(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch || !s.authed {
		return false
	}
	s.loaded = true
	s.settleLocked()
	return true
}

// TryBeginResolution claims the processing flag. It returns the current
// epoch and false when a resolution is already in flight.
func (s *Store) TryBeginResolution() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return s.epoch, false
	}
	s.processing = true
	return s.epoch, true
}

// EndResolution releases the processing flag taken in epoch.
func (s *Store) EndResolution(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch == s.epoch {
		s.processing = false
	}
}

// SetIdentity records the resolved (or placeholder) identity for epoch and
// marks the session authenticated.
func (s *Store) SetIdentity(epoch uint64, p profile.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.identity = &p
	s.authed = true
	s.lastErr = ""
	s.settleLocked()
	return true
}

// SetError records a user-visible error message.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Clear drops the identity on sign-out. The in-flight resolution, if any, is
// abandoned: the epoch moves on and the processing flag is released.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.authed = false
	s.loaded = false
	s.ignoreEvents = false
	s.processing = false
	s.epoch++
}

// Reset returns the store to the state of a freshly loaded page. It is used
// for profile switches and reloads.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.authed = false
	s.loaded = false
	s.ignoreEvents = false
	s.processing = false
	s.lastErr = ""
	s.everSettled = false
	s.epoch++
}

// ResumeEvents clears the settle flag without touching anything else.
func (s *Store) ResumeEvents() {
	s.mu.Lock()
	s.ignoreEvents = false
	s.mu.Unlock()
}

func (s *Store) settleLocked() {
	if s.authed && s.identity != nil && s.loaded {
		s.ignoreEvents = true
		s.everSettled = true
	}
}
