package coordinator

import "time"

// Config is loaded without a prefix; APP_HOSTS is shared with the page
// resolver of every tab.
type Config struct {
	BrowserCookie     string        `env:"COORDINATOR_BROWSER_COOKIE" envDefault:"raisekit_browser"`
	BrowserCookieTTL  time.Duration `env:"COORDINATOR_BROWSER_COOKIE_TTL" envDefault:"8760h"`
	ViewCookieTTL     time.Duration `env:"COORDINATOR_VIEW_COOKIE_TTL" envDefault:"720h"`
	AppHosts          []string      `env:"APP_HOSTS" envSeparator:","`
	DefaultView       string        `env:"COORDINATOR_DEFAULT_VIEW" envDefault:"dashboard"`
	EventBackend      string        `env:"COORDINATOR_EVENT_BACKEND" envDefault:"local"`
	MaxTabsPerBrowser int           `env:"COORDINATOR_MAX_TABS_PER_BROWSER" envDefault:"32"`
}

const (
	EventBackendLocal = "local"
	EventBackendRedis = "redis"
)

// CookieCurrentView stores the preferred dashboard view.
const CookieCurrentView = "currentView"
