package dataloader_test

import "sync"

// fakeState is a minimal State for exercising the loader and watchdog.
type fakeState struct {
	mu            sync.Mutex
	principal     string
	authenticated bool
	loaded        bool
	epoch         uint64
}

func newFakeState(principal string) *fakeState {
	return &fakeState{principal: principal, authenticated: true, epoch: 1}
}

func (s *fakeState) PrincipalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

func (s *fakeState) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *fakeState) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *fakeState) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *fakeState) MarkLoaded(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch || !s.authenticated {
		return false
	}
	s.loaded = true
	return true
}

func (s *fakeState) signOut() {
	s.mu.Lock()
	s.authenticated = false
	s.loaded = false
	s.epoch++
	s.mu.Unlock()
}

func (s *fakeState) setAuthenticated(v bool) {
	s.mu.Lock()
	s.authenticated = v
	s.mu.Unlock()
}

func (s *fakeState) switchTo(principal string) {
	s.mu.Lock()
	s.principal = principal
	s.loaded = false
	s.epoch++
	s.mu.Unlock()
}
