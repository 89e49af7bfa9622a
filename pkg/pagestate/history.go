package pagestate

import "sync"

// History mirrors the page into the browser's URL. Push adds an entry,
// Replace rewrites the current one.
type History interface {
	Push(loc Location)
	Replace(loc Location)
}

// Entry is one recorded history operation.
type Entry struct {
	Location Location `json:"location"`
	Replaced bool     `json:"replaced"`
}

// MemoryHistory records history operations for a tab.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) Push(loc Location) {
	h.mu.Lock()
	h.entries = append(h.entries, Entry{Location: loc})
	h.mu.Unlock()
}

func (h *MemoryHistory) Replace(loc Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 {
		h.entries[n-1] = Entry{Location: loc, Replaced: true}
		return
	}
	h.entries = append(h.entries, Entry{Location: loc, Replaced: true})
}

func (h *MemoryHistory) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Current returns the last recorded location.
func (h *MemoryHistory) Current() (Location, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return Location{}, false
	}
	return h.entries[len(h.entries)-1].Location, true
}
