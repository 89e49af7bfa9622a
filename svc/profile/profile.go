package profile

import (
	"maps"
	"strings"
	"time"
)

// Role is the persona a profile acts as.
type Role string

const (
	RoleStartup  Role = "startup"
	RoleInvestor Role = "investor"
	RoleAdvisor  Role = "advisor"
)

// DefaultRole is used when neither session metadata nor configuration names one.
const DefaultRole = RoleStartup

func (r Role) Valid() bool {
	switch r {
	case RoleStartup, RoleInvestor, RoleAdvisor:
		return true
	}
	return false
}

// ParseRole accepts any casing; unknown values report false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Session metadata keys read when creating a default profile.
const (
	MetaRole        = "role"
	MetaDisplayName = "full_name"
	MetaStartupName = "startup_name"
)

// Profile is an application persona owned by a principal. A principal may
// own several; exactly one is active at a time.
type Profile struct {
	ID               string    `json:"id"`
	PrincipalID      string    `json:"principal_id"`
	Role             Role      `json:"role"`
	DisplayName      string    `json:"display_name"`
	StartupName      string    `json:"startup_name,omitempty"`
	GovernmentID     string    `json:"-"`
	IdentityDocument string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Complete reports whether the role's required identity documents and
// fields are present.
func (p Profile) Complete() bool {
	if p.GovernmentID == "" || p.IdentityDocument == "" {
		return false
	}
	if p.Role == RoleStartup && p.StartupName == "" {
		return false
	}
	return true
}

// Placeholder reports whether p is a minimal identity that has no stored row.
func (p Profile) Placeholder() bool {
	return p.ID == ""
}

// Minimal builds the placeholder identity shown while the real profile is
// being resolved, or kept when resolution and creation both fail.
func Minimal(principalID string, role Role) Profile {
	if !role.Valid() {
		role = DefaultRole
	}
	name := principalID
	if r := []rune(name); len(r) > 8 {
		name = string(r[:8])
	}
	return Profile{
		PrincipalID: principalID,
		Role:        role,
		DisplayName: "user-" + name,
	}
}

// WithFallbackRole returns a copy of md whose role entry is valid, using
// fallback when the metadata has none.
func WithFallbackRole(md map[string]string, fallback Role) map[string]string {
	out := maps.Clone(md)
	if out == nil {
		out = make(map[string]string, 1)
	}
	if _, ok := ParseRole(out[MetaRole]); !ok {
		if !fallback.Valid() {
			fallback = DefaultRole
		}
		out[MetaRole] = string(fallback)
	}
	return out
}

// newDefault builds the profile row created for a principal with none.
func newDefault(id, principalID string, md map[string]string, now time.Time) Profile {
	role, ok := ParseRole(md[MetaRole])
	if !ok {
		role = DefaultRole
	}
	p := Profile{
		ID:          id,
		PrincipalID: principalID,
		Role:        role,
		DisplayName: strings.TrimSpace(md[MetaDisplayName]),
		CreatedAt:   now,
	}
	if p.DisplayName == "" {
		p.DisplayName = Minimal(principalID, role).DisplayName
	}
	if role == RoleStartup {
		p.StartupName = strings.TrimSpace(md[MetaStartupName])
	}
	return p
}
