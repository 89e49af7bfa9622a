package reconciler

import "time"

// Config is loaded with the RECONCILER_ prefix.
type Config struct {
	DedupWindow     time.Duration `env:"DEDUP_WINDOW" envDefault:"30s"`
	DedupBackend    string        `env:"DEDUP_BACKEND" envDefault:"cookie"`
	DedupKeyPrefix  string        `env:"DEDUP_KEY_PREFIX" envDefault:"raisekit:dedup:"`
	FallbackRole    string        `env:"FALLBACK_ROLE" envDefault:"startup"`
	ResolveTimeout  time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"15s"`
	SafetyNetDelay  time.Duration `env:"SAFETY_NET_DELAY" envDefault:"20s"`
	StartupInterval time.Duration `env:"STARTUP_RETRY_INTERVAL" envDefault:"2s"`
	Debug           bool          `env:"DEBUG" envDefault:"false"`
}

const (
	DedupBackendCookie = "cookie"
	DedupBackendRedis  = "redis"
)
