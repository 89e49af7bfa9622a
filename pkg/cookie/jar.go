package cookie

import (
	"net/http"
	"sync"
	"time"
)

// Jar is the small durable key/value store the coordinator keeps on the
// browser side: dedup markers and UI preferences.
type Jar interface {
	Get(name string) (string, error)
	Set(name, value string, maxAge time.Duration) error
	Delete(name string) error
}

// MemoryJar mirrors one browser's cookies in memory. Every tab of the same
// browser shares a single MemoryJar, the way tabs share document.cookie.
type MemoryJar struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryJarOption configures a MemoryJar.
type MemoryJarOption func(*MemoryJar)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) MemoryJarOption {
	return func(j *MemoryJar) {
		if now != nil {
			j.now = now
		}
	}
}

func NewMemoryJar(opts ...MemoryJarOption) *MemoryJar {
	j := &MemoryJar{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *MemoryJar) Get(name string) (string, error) {
	j.mu.RLock()
	e, ok := j.entries[name]
	j.mu.RUnlock()

	if !ok {
		return "", ErrCookieNotFound
	}
	if !e.expiresAt.IsZero() && !j.now().Before(e.expiresAt) {
		j.mu.Lock()
		delete(j.entries, name)
		j.mu.Unlock()
		return "", ErrCookieNotFound
	}
	return e.value, nil
}

// Set stores value; maxAge <= 0 keeps it until Delete.
func (j *MemoryJar) Set(name, value string, maxAge time.Duration) error {
	e := memoryEntry{value: value}
	if maxAge > 0 {
		e.expiresAt = j.now().Add(maxAge)
	}

	j.mu.Lock()
	j.entries[name] = e
	j.mu.Unlock()
	return nil
}

func (j *MemoryJar) Delete(name string) error {
	j.mu.Lock()
	delete(j.entries, name)
	j.mu.Unlock()
	return nil
}

// HTTPJar adapts a Manager to a single request/response pair. Values written
// during the request are visible to later reads in the same request.
type HTTPJar struct {
	m       *Manager
	w       http.ResponseWriter
	r       *http.Request
	mu      sync.Mutex
	written map[string]*string
}

func (m *Manager) Jar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	return &HTTPJar{m: m, w: w, r: r, written: make(map[string]*string)}
}

func (j *HTTPJar) Get(name string) (string, error) {
	j.mu.Lock()
	v, ok := j.written[name]
	j.mu.Unlock()
	if ok {
		if v == nil {
			return "", ErrCookieNotFound
		}
		return *v, nil
	}
	return j.m.GetSigned(j.r, name)
}

func (j *HTTPJar) Set(name, value string, maxAge time.Duration) error {
	j.m.SetSigned(j.w, name, value, maxAge)
	j.mu.Lock()
	j.written[name] = &value
	j.mu.Unlock()
	return nil
}

func (j *HTTPJar) Delete(name string) error {
	j.m.Delete(j.w, name)
	j.mu.Lock()
	j.written[name] = nil
	j.mu.Unlock()
	return nil
}
