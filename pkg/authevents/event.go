package authevents

import (
	"context"
	"time"
)

// Kind is the type of a session-change notification.
type Kind string

const (
	SignedIn       Kind = "SIGNED_IN"
	SignedOut      Kind = "SIGNED_OUT"
	TokenRefreshed Kind = "TOKEN_REFRESHED"
	InitialSession Kind = "INITIAL_SESSION"
)

func (k Kind) Valid() bool {
	switch k {
	case SignedIn, SignedOut, TokenRefreshed, InitialSession:
		return true
	}
	return false
}

// Session is owned by the auth provider. Consumers read it and never mutate it.
type Session struct {
	PrincipalID    string            `json:"principal_id"`
	Email          string            `json:"email"`
	EmailConfirmed bool              `json:"email_confirmed"`
	PasswordSet    bool              `json:"password_set"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IssuedAt       time.Time         `json:"issued_at"`
	RefreshedAt    time.Time         `json:"refreshed_at"`
}

// Event is one notification from the provider. Session is nil for SIGNED_OUT
// and may be nil for INITIAL_SESSION when nobody is signed in.
type Event struct {
	Kind    Kind      `json:"kind"`
	Session *Session  `json:"session,omitempty"`
	At      time.Time `json:"at"`
}

// PrincipalID returns the session's principal or "" when there is no session.
func (e Event) PrincipalID() string {
	if e.Session == nil {
		return ""
	}
	return e.Session.PrincipalID
}

// Handler receives events in arrival order for its subscription.
type Handler func(ctx context.Context, ev Event)

// Unsubscribe stops delivery to a handler. It is safe to call more than once.
type Unsubscribe func()

// Source is the push-based auth provider as seen by one browser.
type Source interface {
	Subscribe(h Handler) Unsubscribe
	// CurrentPrincipalID asks the provider directly, ignoring any event payload.
	// It returns "" with a nil error when nobody is signed in.
	CurrentPrincipalID(ctx context.Context) (string, error)
	CurrentSession(ctx context.Context) (*Session, error)
	// SignOut ends the session upstream; subscribers observe SIGNED_OUT.
	SignOut(ctx context.Context) error
}
