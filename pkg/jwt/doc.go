// Package jwt verifies HS256 access tokens issued by the auth provider and
// carries their claims through the request context.
//
// A Service signs and parses tokens with github.com/golang-jwt/jwt/v5,
// pinning the algorithm, requiring an expiry and optionally checking the
// issuer and audience. Middleware extracts a token from the request,
// verifies it into a caller-provided claims type and stores both in the
// context:
//
//	tokens, err := jwt.NewFromConfig(cfg)
//	if err != nil {
//		return err
//	}
//	r.With(jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
//		Service:   tokens,
//		NewClaims: func() jwt.Claims { return &MyClaims{} },
//	})).Post("/events", h)
//
//	claims, ok := jwt.GetClaims[*MyClaims](r.Context())
//
// Errors are sentinel values (ErrInvalidToken, ErrExpiredToken,
// ErrInvalidSignature, ErrMissingToken) joined with the library cause and
// matchable with errors.Is.
package jwt
