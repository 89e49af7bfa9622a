package authevents

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/raisekit/pkg/logger"
)

// Hub is an in-memory Source for one browser. It tracks the provider's
// current session and fans every published event out to all subscribed
// tabs. Each subscription has its own unbounded queue and goroutine, so a
// slow tab never blocks the others and never loses or reorders events.
type Hub struct {
	mu      sync.RWMutex
	session *Session
	seen    bool
	subs    map[*subscription]struct{}
	closed  bool
	now     func() time.Time
	log     *slog.Logger
}

type HubOption func(*Hub)

func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func WithHubClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs: make(map[*subscription]struct{}),
		now:  time.Now,
		log:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish records the session change and delivers ev to every subscriber.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if !ev.Kind.Valid() {
		return ErrInvalidEvent
	}
	if ev.Kind == SignedIn && ev.Session == nil {
		return ErrNoSession
	}
	if ev.At.IsZero() {
		ev.At = h.now()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.seen = true
	switch ev.Kind {
	case SignedOut:
		h.session = nil
	default:
		if ev.Session != nil {
			s := *ev.Session
			h.session = &s
		}
	}
	subs := make([]*subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	h.log.DebugContext(ctx, "auth event published",
		logger.AuthEvent(string(ev.Kind)),
		logger.PrincipalID(ev.PrincipalID()),
		slog.Int("subscribers", len(subs)),
	)

	for _, s := range subs {
		s.push(ev)
	}
	return nil
}

func (h *Hub) Subscribe(handler Handler) Unsubscribe {
	s := newSubscription(handler)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.close()
		return func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
			s.close()
		})
	}
}

// Seed sets the current session of a hub that has not seen any event yet,
// without notifying subscribers. It reports whether the session was taken.
func (h *Hub) Seed(s *Session) bool {
	if s == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.seen {
		return false
	}
	cp := *s
	h.session = &cp
	h.seen = true
	return true
}

func (h *Hub) CurrentPrincipalID(ctx context.Context) (string, error) {
	s, err := h.CurrentSession(ctx)
	if err != nil || s == nil {
		return "", err
	}
	return s.PrincipalID, nil
}

func (h *Hub) CurrentSession(_ context.Context) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil, nil
	}
	s := *h.session
	return &s, nil
}

func (h *Hub) SignOut(ctx context.Context) error {
	return h.Publish(ctx, Event{Kind: SignedOut})
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close stops every subscription. Events already queued are discarded.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[*subscription]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.close()
	}
	return nil
}

type subscription struct {
	handler Handler
	mu      sync.Mutex
	queue   []Event
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newSubscription(h Handler) *subscription {
	return &subscription{
		handler: h,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *subscription) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.handler(ctx, ev)
		}
	}
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.done) })
}
