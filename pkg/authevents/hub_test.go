package authevents_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
)

type collector struct {
	mu     sync.Mutex
	events []authevents.Event
}

func (c *collector) handle(_ context.Context, ev authevents.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) kinds() []authevents.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]authevents.Kind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func session(id string) *authevents.Session {
	return &authevents.Session{PrincipalID: id, Email: id + "@example.com", EmailConfirmed: true}
}

func TestHub_DeliversInOrderToEverySubscriber(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := authevents.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	var tab1, tab2 collector
	hub.Subscribe(tab1.handle)
	hub.Subscribe(tab2.handle)
	require.Equal(t, 2, hub.Subscribers())

	seq := []authevents.Kind{authevents.InitialSession, authevents.SignedIn, authevents.TokenRefreshed, authevents.SignedOut}
	for _, k := range seq {
		ev := authevents.Event{Kind: k}
		if k != authevents.SignedOut {
			ev.Session = session("p1")
		}
		require.NoError(t, hub.Publish(ctx, ev))
	}

	for _, c := range []*collector{&tab1, &tab2} {
		require.Eventually(t, func() bool { return len(c.kinds()) == len(seq) }, time.Second, 5*time.Millisecond)
		assert.Equal(t, seq, c.kinds())
	}
}

func TestHub_TracksCurrentSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := authevents.NewHub()

	id, err := hub.CurrentPrincipalID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, hub.Publish(ctx, authevents.Event{Kind: authevents.SignedIn, Session: session("p1")}))
	id, err = hub.CurrentPrincipalID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	s, err := hub.CurrentSession(ctx)
	require.NoError(t, err)
	s.PrincipalID = "mutated"
	id, _ = hub.CurrentPrincipalID(ctx)
	assert.Equal(t, "p1", id, "callers get a copy")

	require.NoError(t, hub.SignOut(ctx))
	id, err = hub.CurrentPrincipalID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestHub_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := authevents.NewHub()

	require.ErrorIs(t, hub.Publish(ctx, authevents.Event{Kind: "BOGUS"}), authevents.ErrInvalidEvent)
	require.ErrorIs(t, hub.Publish(ctx, authevents.Event{Kind: authevents.SignedIn}), authevents.ErrNoSession)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
	require.ErrorIs(t, hub.SignOut(ctx), authevents.ErrHubClosed)

	unsub := hub.Subscribe(func(context.Context, authevents.Event) {})
	unsub()
	assert.Zero(t, hub.Subscribers())
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := authevents.NewHub()

	var c collector
	unsub := hub.Subscribe(c.handle)
	unsub()
	unsub()
	assert.Zero(t, hub.Subscribers())

	require.NoError(t, hub.Publish(ctx, authevents.Event{Kind: authevents.SignedIn, Session: session("p1")}))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.kinds())
}

func TestHub_StampsTime(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hub := authevents.NewHub(authevents.WithHubClock(func() time.Time { return at }))

	got := make(chan authevents.Event, 1)
	hub.Subscribe(func(_ context.Context, ev authevents.Event) { got <- ev })
	require.NoError(t, hub.Publish(context.Background(), authevents.Event{Kind: authevents.SignedOut}))

	select {
	case ev := <-got:
		assert.Equal(t, at, ev.At)
		assert.Empty(t, ev.PrincipalID())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestLocalPublisher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := authevents.NewHub()

	pub := authevents.NewLocalPublisher(func(id string) *authevents.Hub {
		if id == "b1" {
			return hub
		}
		return nil
	})
	require.NoError(t, pub.Publish(ctx, "b1", authevents.Event{Kind: authevents.SignedIn, Session: session("p1")}))
	require.NoError(t, pub.Publish(ctx, "unknown", authevents.Event{Kind: authevents.SignedOut}))

	id, err := hub.CurrentPrincipalID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

func TestRedisBridge_Channel(t *testing.T) {
	t.Parallel()

	b := authevents.NewRedisBridge(nil, nil)
	assert.Equal(t, "raisekit:auth:b1", b.Channel("b1"))

	b = authevents.NewRedisBridge(nil, nil, authevents.WithChannelPrefix("x:"))
	assert.Equal(t, "x:b1", b.Channel("b1"))

	err := b.Publish(context.Background(), "b1", authevents.Event{Kind: "nope"})
	require.ErrorIs(t, err, authevents.ErrInvalidEvent)
}

func TestHub_Seed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fresh hub adopts the session", func(t *testing.T) {
		t.Parallel()
		hub := authevents.NewHub()
		assert.False(t, hub.Seed(nil))

		s := session("p1")
		require.True(t, hub.Seed(s))
		s.PrincipalID = "mutated"

		id, err := hub.CurrentPrincipalID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "p1", id)
		assert.False(t, hub.Seed(session("p2")), "seeding happens once")
	})

	t.Run("published events win", func(t *testing.T) {
		t.Parallel()
		hub := authevents.NewHub()
		require.NoError(t, hub.SignOut(ctx))
		assert.False(t, hub.Seed(session("p1")))

		id, err := hub.CurrentPrincipalID(ctx)
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("closed hub", func(t *testing.T) {
		t.Parallel()
		hub := authevents.NewHub()
		require.NoError(t, hub.Close())
		assert.False(t, hub.Seed(session("p1")))
	})
}
