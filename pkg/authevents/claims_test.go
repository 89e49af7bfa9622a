package authevents_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/jwt"
)

func TestProviderClaims_Session(t *testing.T) {
	t.Parallel()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		claims  *authevents.ProviderClaims
		want    *authevents.Session
		wantErr error
	}{
		{
			name: "full token",
			claims: &authevents.ProviderClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "P1", IssuedAt: jwt.NewNumericDate(issued)},
				Email:            "p1@example.com",
				EmailConfirmed:   true,
				PasswordSet:      true,
				Metadata:         map[string]string{"name": "Ada"},
			},
			want: &authevents.Session{
				PrincipalID:    "P1",
				Email:          "p1@example.com",
				EmailConfirmed: true,
				PasswordSet:    true,
				Metadata:       map[string]string{"name": "Ada"},
				IssuedAt:       issued,
				RefreshedAt:    issued,
			},
		},
		{
			name:   "no issued at",
			claims: &authevents.ProviderClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "P1"}},
			want:   &authevents.Session{PrincipalID: "P1"},
		},
		{name: "no subject", claims: &authevents.ProviderClaims{Email: "p1@example.com"}, wantErr: authevents.ErrNoSession},
		{name: "nil claims", wantErr: authevents.ErrNoSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.claims.Session()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderClaims_SignedRoundTrip(t *testing.T) {
	t.Parallel()

	tokens, err := jwt.New([]byte("provider-signing-key-0123456789ab"))
	require.NoError(t, err)
	token, err := tokens.Generate(&authevents.ProviderClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "P1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		EmailConfirmed:   true,
	})
	require.NoError(t, err)

	var claims authevents.ProviderClaims
	require.NoError(t, tokens.Parse(token, &claims))
	s, err := claims.Session()
	require.NoError(t, err)
	assert.Equal(t, "P1", s.PrincipalID)
	assert.True(t, s.EmailConfirmed)
	assert.False(t, s.PasswordSet)
}
