package authevents

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/raisekit/pkg/logger"
)

const (
	defaultChannelPrefix = "raisekit:auth:"
	defaultSessionPrefix = "raisekit:session:"
	defaultSessionTTL    = 24 * time.Hour
)

// Publisher delivers an event to every tab of a browser, wherever those tabs
// are served.
type Publisher interface {
	Publish(ctx context.Context, browserID string, ev Event) error
}

// HubResolver returns the local hub for a browser, or nil when this instance
// serves no tab of that browser.
type HubResolver func(browserID string) *Hub

// LocalPublisher publishes straight into the in-process hubs.
type LocalPublisher struct {
	resolve HubResolver
}

func NewLocalPublisher(resolve HubResolver) *LocalPublisher {
	return &LocalPublisher{resolve: resolve}
}

func (p *LocalPublisher) Publish(ctx context.Context, browserID string, ev Event) error {
	hub := p.resolve(browserID)
	if hub == nil {
		return nil
	}
	return hub.Publish(ctx, ev)
}

// RedisBridge publishes events on a Redis channel per browser and feeds
// events received from Redis into local hubs, so tabs of the same browser
// served by different instances share one stream. Local delivery happens
// only through the subscription, which keeps per-channel ordering intact.
//
// The browser's current session is stored next to the channel, so an
// instance that registers the browser after an event was published can
// still seed its hub from Session.
type RedisBridge struct {
	client        redis.UniversalClient
	prefix        string
	sessionPrefix string
	sessionTTL    time.Duration
	resolve       HubResolver
	log           *slog.Logger
}

type BridgeOption func(*RedisBridge)

func WithChannelPrefix(prefix string) BridgeOption {
	return func(b *RedisBridge) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

func WithSessionPrefix(prefix string) BridgeOption {
	return func(b *RedisBridge) {
		if prefix != "" {
			b.sessionPrefix = prefix
		}
	}
}

// WithSessionTTL bounds how long a stored session outlives its last event.
func WithSessionTTL(ttl time.Duration) BridgeOption {
	return func(b *RedisBridge) {
		if ttl > 0 {
			b.sessionTTL = ttl
		}
	}
}

func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *RedisBridge) {
		if l != nil {
			b.log = l
		}
	}
}

func NewRedisBridge(client redis.UniversalClient, resolve HubResolver, opts ...BridgeOption) *RedisBridge {
	b := &RedisBridge{
		client:        client,
		prefix:        defaultChannelPrefix,
		sessionPrefix: defaultSessionPrefix,
		sessionTTL:    defaultSessionTTL,
		resolve:       resolve,
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBridge) Channel(browserID string) string {
	return b.prefix + browserID
}

func (b *RedisBridge) SessionKey(browserID string) string {
	return b.sessionPrefix + browserID
}

// Publish stores the session change and publishes ev in one transaction.
func (b *RedisBridge) Publish(ctx context.Context, browserID string, ev Event) error {
	if !ev.Kind.Valid() {
		return ErrInvalidEvent
	}
	if ev.Kind == SignedIn && ev.Session == nil {
		return ErrNoSession
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var session []byte
	if ev.Kind != SignedOut && ev.Session != nil {
		if session, err = json.Marshal(ev.Session); err != nil {
			return err
		}
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		switch {
		case ev.Kind == SignedOut:
			pipe.Del(ctx, b.SessionKey(browserID))
		case session != nil:
			pipe.Set(ctx, b.SessionKey(browserID), session, b.sessionTTL)
		}
		pipe.Publish(ctx, b.Channel(browserID), payload)
		return nil
	})
	return err
}

// Session returns the last session published for a browser, or nil when
// nobody is signed in.
func (b *RedisBridge) Session(ctx context.Context, browserID string) (*Session, error) {
	raw, err := b.client.Get(ctx, b.SessionKey(browserID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Run consumes the bridge's channels until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(ctx, msg)
		}
	}
}

func (b *RedisBridge) dispatch(ctx context.Context, msg *redis.Message) {
	browserID := strings.TrimPrefix(msg.Channel, b.prefix)
	hub := b.resolve(browserID)
	if hub == nil {
		return
	}

	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		b.log.WarnContext(ctx, "dropping malformed auth event", logger.Error(err))
		return
	}
	if err := hub.Publish(ctx, ev); err != nil && !errors.Is(err, ErrHubClosed) {
		b.log.WarnContext(ctx, "failed to deliver bridged auth event",
			logger.AuthEvent(string(ev.Kind)),
			logger.Error(err),
		)
	}
}
