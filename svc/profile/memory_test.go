package profile_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/svc/profile"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// twoProfileStore builds principal P1 with an incomplete startup profile and
// a complete investor profile.
func twoProfileStore(t *testing.T) *profile.MemoryStore {
	t.Helper()
	s := profile.NewMemoryStore(profile.WithMemoryClock(fixedClock()))
	s.Put(profile.Profile{ID: "startup-profile-7", PrincipalID: "P1", Role: profile.RoleStartup, DisplayName: "Acme"})
	s.Put(profile.Profile{
		ID: "investor-profile-9", PrincipalID: "P1", Role: profile.RoleInvestor, DisplayName: "Ada",
		GovernmentID: "GOV-1", IdentityDocument: "doc.pdf",
	})
	s.Put(profile.Profile{ID: "other-1", PrincipalID: "P2", Role: profile.RoleAdvisor})
	return s
}

func TestProfile_Complete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    profile.Profile
		want bool
	}{
		{"investor with documents", profile.Profile{Role: profile.RoleInvestor, GovernmentID: "g", IdentityDocument: "d"}, true},
		{"investor missing document", profile.Profile{Role: profile.RoleInvestor, GovernmentID: "g"}, false},
		{"startup without name", profile.Profile{Role: profile.RoleStartup, GovernmentID: "g", IdentityDocument: "d"}, false},
		{"startup with name", profile.Profile{Role: profile.RoleStartup, GovernmentID: "g", IdentityDocument: "d", StartupName: "Acme"}, true},
		{"empty", profile.Profile{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.p.Complete())
		})
	}
}

func TestMinimalAndFallbackRole(t *testing.T) {
	t.Parallel()

	m := profile.Minimal("0123456789abcdef", profile.RoleInvestor)
	assert.True(t, m.Placeholder())
	assert.Equal(t, profile.RoleInvestor, m.Role)
	assert.Equal(t, "user-01234567", m.DisplayName)
	assert.Equal(t, "user-ÄÖÜßéèêë", profile.Minimal("ÄÖÜßéèêëabc", "").DisplayName, "cut on runes")
	assert.Equal(t, "user-日本語", profile.Minimal("日本語", "").DisplayName)
	assert.Equal(t, profile.DefaultRole, profile.Minimal("p", "bogus").Role)

	md := map[string]string{"full_name": "Ada"}
	out := profile.WithFallbackRole(md, profile.RoleAdvisor)
	assert.Equal(t, "advisor", out[profile.MetaRole])
	assert.NotContains(t, md, profile.MetaRole, "input is not mutated")

	out = profile.WithFallbackRole(map[string]string{"role": "Investor"}, profile.RoleAdvisor)
	assert.Equal(t, "Investor", out[profile.MetaRole])

	out = profile.WithFallbackRole(nil, "")
	assert.Equal(t, string(profile.DefaultRole), out[profile.MetaRole])
}

func TestMemoryStore_GetProfileForPrincipal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := twoProfileStore(t)

	p, err := s.GetProfileForPrincipal(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "startup-profile-7", p.ID, "oldest profile without a pointer")

	require.NoError(t, s.SetActiveProfile(ctx, "P1", "investor-profile-9"))
	p, err = s.GetProfileForPrincipal(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "investor-profile-9", p.ID)

	_, err = s.GetProfileForPrincipal(ctx, "nobody")
	require.ErrorIs(t, err, profile.ErrNotFound)

	_, err = s.GetProfileForPrincipal(ctx, "")
	require.ErrorIs(t, err, profile.ErrEmptyPrincipal)
}

func TestMemoryStore_CreateDefaultProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := profile.NewMemoryStore(profile.WithIDGenerator(sequentialIDs("prof")), profile.WithMemoryClock(fixedClock()))

	p, err := s.CreateDefaultProfile(ctx, "P9", map[string]string{
		"role": "startup", "full_name": "Grace", "startup_name": "Orbit",
	})
	require.NoError(t, err)
	assert.Equal(t, "prof-1", p.ID)
	assert.Equal(t, profile.RoleStartup, p.Role)
	assert.Equal(t, "Grace", p.DisplayName)
	assert.Equal(t, "Orbit", p.StartupName)
	assert.False(t, p.Complete())

	active, ok := s.ActiveProfileID("P9")
	require.True(t, ok)
	assert.Equal(t, "prof-1", active)

	second, err := s.CreateDefaultProfile(ctx, "P9", map[string]string{"role": "investor"})
	require.NoError(t, err)
	assert.Equal(t, profile.RoleInvestor, second.Role)
	assert.NotEmpty(t, second.DisplayName)

	active, _ = s.ActiveProfileID("P9")
	assert.Equal(t, "prof-1", active, "existing pointer is kept")

	list, err := s.ListProfilesForPrincipal(ctx, "P9")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "prof-1", list[0].ID)
}

func TestMemoryStore_SetActiveProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := twoProfileStore(t)

	require.ErrorIs(t, s.SetActiveProfile(ctx, "P1", "other-1"), profile.ErrNotOwned)
	require.ErrorIs(t, s.SetActiveProfile(ctx, "P1", "missing"), profile.ErrNotFound)
	require.ErrorIs(t, s.SetActiveProfile(ctx, "P1", ""), profile.ErrEmptyProfileID)

	_, ok := s.ActiveProfileID("P1")
	assert.False(t, ok, "failed updates leave no pointer")

	complete, err := s.IsComplete(ctx, "investor-profile-9")
	require.NoError(t, err)
	assert.True(t, complete)

	complete, err = s.IsComplete(ctx, "startup-profile-7")
	require.NoError(t, err)
	assert.False(t, complete)

	_, err = s.IsComplete(ctx, "missing")
	require.ErrorIs(t, err, profile.ErrNotFound)
}
