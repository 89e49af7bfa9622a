package authevents

import "github.com/dmitrymomot/raisekit/pkg/jwt"

// ProviderClaims are the access-token claims the auth provider signs. The
// subject is the principal id.
type ProviderClaims struct {
	jwt.RegisteredClaims
	Email          string            `json:"email,omitempty"`
	EmailConfirmed bool              `json:"email_confirmed,omitempty"`
	PasswordSet    bool              `json:"password_set,omitempty"`
	Metadata       map[string]string `json:"user_metadata,omitempty"`
}

// Session returns the session the token vouches for.
func (c *ProviderClaims) Session() (*Session, error) {
	if c == nil || c.Subject == "" {
		return nil, ErrNoSession
	}
	s := &Session{
		PrincipalID:    c.Subject,
		Email:          c.Email,
		EmailConfirmed: c.EmailConfirmed,
		PasswordSet:    c.PasswordSet,
		Metadata:       c.Metadata,
	}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
		s.RefreshedAt = c.IssuedAt.Time
	}
	return s, nil
}
