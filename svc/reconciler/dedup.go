package reconciler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/raisekit/pkg/cookie"
)

// Dedup cookie names and lifetime.
const (
	CookieLastAuthUserID    = "lastAuthUserId"
	CookieLastAuthTimestamp = "lastAuthTimestamp"
	dedupCookieMaxAge       = 24 * time.Hour

	DefaultDedupWindow = 30 * time.Second
)

// DedupGuard suppresses repeated sign-in events for the same principal
// within a short window. It is a heuristic and never authoritative.
type DedupGuard interface {
	ShouldSuppress(ctx context.Context, principalID string) bool
	Record(ctx context.Context, principalID string) error
	Clear(ctx context.Context) error
}

// CookieDedup keeps the last principal id and timestamp in the browser's
// cookie jar, shared by all of its tabs.
type CookieDedup struct {
	jar    cookie.Jar
	window time.Duration
	now    func() time.Time
}

type CookieDedupOption func(*CookieDedup)

func WithDedupClock(now func() time.Time) CookieDedupOption {
	return func(d *CookieDedup) {
		if now != nil {
			d.now = now
		}
	}
}

func WithDedupWindow(window time.Duration) CookieDedupOption {
	return func(d *CookieDedup) {
		if window > 0 {
			d.window = window
		}
	}
}

func NewCookieDedup(jar cookie.Jar, opts ...CookieDedupOption) *CookieDedup {
	d := &CookieDedup{jar: jar, window: DefaultDedupWindow, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *CookieDedup) ShouldSuppress(_ context.Context, principalID string) bool {
	if principalID == "" {
		return false
	}
	last, err := d.jar.Get(CookieLastAuthUserID)
	if err != nil || last != principalID {
		return false
	}
	raw, err := d.jar.Get(CookieLastAuthTimestamp)
	if err != nil {
		return false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	age := d.now().Sub(time.UnixMilli(ms))
	return age >= 0 && age < d.window
}

func (d *CookieDedup) Record(_ context.Context, principalID string) error {
	ts := strconv.FormatInt(d.now().UnixMilli(), 10)
	return errors.Join(
		d.jar.Set(CookieLastAuthUserID, principalID, dedupCookieMaxAge),
		d.jar.Set(CookieLastAuthTimestamp, ts, dedupCookieMaxAge),
	)
}

func (d *CookieDedup) Clear(_ context.Context) error {
	return errors.Join(
		d.jar.Delete(CookieLastAuthUserID),
		d.jar.Delete(CookieLastAuthTimestamp),
	)
}

// RedisDedup keeps the marker server-side, keyed by browser, with a TTL
// equal to the window. Lookup failures never suppress an event.
type RedisDedup struct {
	client redis.UniversalClient
	key    string
	window time.Duration
}

// NewRedisDedup scopes the marker to one browser id.
func NewRedisDedup(client redis.UniversalClient, prefix, browserID string, window time.Duration) *RedisDedup {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if prefix == "" {
		prefix = "raisekit:dedup:"
	}
	return &RedisDedup{client: client, key: prefix + browserID, window: window}
}

func (d *RedisDedup) Key() string { return d.key }

func (d *RedisDedup) ShouldSuppress(ctx context.Context, principalID string) bool {
	if principalID == "" {
		return false
	}
	last, err := d.client.Get(ctx, d.key).Result()
	if err != nil {
		return false
	}
	return last == principalID
}

func (d *RedisDedup) Record(ctx context.Context, principalID string) error {
	return d.client.Set(ctx, d.key, principalID, d.window).Err()
}

func (d *RedisDedup) Clear(ctx context.Context) error {
	return d.client.Del(ctx, d.key).Err()
}

var (
	_ DedupGuard = (*CookieDedup)(nil)
	_ DedupGuard = (*RedisDedup)(nil)
)
