package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims is any claims type the parser can validate.
type Claims = gojwt.Claims

// RegisteredClaims are the RFC 7519 registered claims, for embedding.
type RegisteredClaims = gojwt.RegisteredClaims

// NewNumericDate converts t to a claim timestamp.
func NewNumericDate(t time.Time) *gojwt.NumericDate {
	return gojwt.NewNumericDate(t)
}

// Service signs and verifies HS256 tokens with a shared key.
type Service struct {
	key      []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithIssuer requires the iss claim to match.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

// WithAudience requires the aud claim to contain aud.
func WithAudience(aud string) Option {
	return func(s *Service) { s.audience = aud }
}

// WithLeeway tolerates clock skew when checking exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.leeway = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	s := &Service{key: signingKey, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate signs claims with HS256.
func (s *Service) Generate(claims Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenString and decodes it into claims. Tokens without an
// expiry, signed with another algorithm or key, or failing the issuer and
// audience checks are rejected.
func (s *Service) Parse(tokenString string, claims Claims) error {
	if claims == nil {
		return ErrMissingClaims
	}
	if tokenString == "" {
		return ErrMissingToken
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithLeeway(s.leeway),
		gojwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, gojwt.WithAudience(s.audience))
	}

	token, err := gojwt.ParseWithClaims(tokenString, claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return errors.Join(ErrExpiredToken, err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return errors.Join(ErrInvalidSignature, err)
	case err != nil:
		return errors.Join(ErrInvalidToken, err)
	case !token.Valid:
		return ErrInvalidToken
	}
	return nil
}
