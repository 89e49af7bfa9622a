package profile

import "context"

// Store persists profiles and the per-principal active-profile pointer.
// The pointer always references a profile owned by the same principal.
type Store interface {
	// GetProfileForPrincipal returns the active profile, falling back to the
	// oldest one when no pointer is set. It returns ErrNotFound when the
	// principal owns no profiles.
	GetProfileForPrincipal(ctx context.Context, principalID string) (Profile, error)
	// CreateDefaultProfile creates a profile from session metadata and makes
	// it active when the principal has no active profile yet.
	CreateDefaultProfile(ctx context.Context, principalID string, metadata map[string]string) (Profile, error)
	GetProfile(ctx context.Context, profileID string) (Profile, error)
	IsComplete(ctx context.Context, profileID string) (bool, error)
	ListProfilesForPrincipal(ctx context.Context, principalID string) ([]Profile, error)
	// SetActiveProfile moves the pointer. It fails with ErrNotOwned when the
	// profile belongs to another principal and ErrNotFound when it is unknown.
	SetActiveProfile(ctx context.Context, principalID, profileID string) error
}
