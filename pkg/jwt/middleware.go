package jwt

import (
	"errors"
	"net/http"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// TokenExtractorFunc pulls a raw token out of a request. It returns
// ErrMissingToken when the request carries none.
type TokenExtractorFunc func(r *http.Request) (string, error)

// MiddlewareConfig configures token verification for a route.
type MiddlewareConfig struct {
	Service   *Service
	Extractor TokenExtractorFunc
	// NewClaims returns the value the token is decoded into. Defaults to
	// jwt.MapClaims.
	NewClaims func() Claims
	// Optional passes requests without a token through unauthenticated. A
	// token that is present must still verify.
	Optional bool
	// ErrorHandler writes the rejection. Defaults to a plain 401.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware requires a valid Bearer token on every request.
func Middleware(service *Service) func(next http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Service: service})
}

func MiddlewareWithConfig(cfg MiddlewareConfig) func(next http.Handler) http.Handler {
	if cfg.Extractor == nil {
		cfg.Extractor = BearerTokenExtractor
	}
	if cfg.NewClaims == nil {
		cfg.NewClaims = func() Claims { return gojwt.MapClaims{} }
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := cfg.Extractor(r)
			if err != nil {
				if cfg.Optional && errors.Is(err, ErrMissingToken) {
					next.ServeHTTP(w, r)
					return
				}
				cfg.ErrorHandler(w, r, err)
				return
			}

			claims := cfg.NewClaims()
			if err := cfg.Service.Parse(token, claims); err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			ctx := SetClaims(SetToken(r.Context(), token), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// HeaderTokenExtractor reads the token from a custom header.
func HeaderTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		if token := r.Header.Get(name); token != "" {
			return token, nil
		}
		return "", ErrMissingToken
	}
}
