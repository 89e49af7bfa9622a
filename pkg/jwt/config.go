package jwt

import "time"

// Config describes the provider's token signing setup.
type Config struct {
	SigningKey string        `env:"AUTH_PROVIDER_JWT_SECRET,required"`
	Issuer     string        `env:"AUTH_PROVIDER_JWT_ISSUER"`
	Audience   string        `env:"AUTH_PROVIDER_JWT_AUDIENCE"`
	Leeway     time.Duration `env:"AUTH_PROVIDER_JWT_LEEWAY" envDefault:"30s"`
}

// NewFromConfig builds a Service from Config; opts are applied last.
func NewFromConfig(cfg Config, opts ...Option) (*Service, error) {
	configOpts := make([]Option, 0, 3+len(opts))
	if cfg.Issuer != "" {
		configOpts = append(configOpts, WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		configOpts = append(configOpts, WithAudience(cfg.Audience))
	}
	configOpts = append(configOpts, WithLeeway(cfg.Leeway))
	configOpts = append(configOpts, opts...)

	return New([]byte(cfg.SigningKey), configOpts...)
}
