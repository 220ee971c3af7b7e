package auth

import (
	"errors"
	"testing"
	"time"

	"affiliate-blog/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0).UTC()
	u := User{ID: "user-1", Email: "a@example.com", AppMetadata: map[string]any{"role": "admin"}}

	pair, err := m.IssuePair(now, u, "sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, now.Add(15*time.Minute), pair.AccessExpiresAt)

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, map[string]any{"role": "admin"}, claims.AppMetadata)

	m2 := claims.Map()
	assert.Equal(t, map[string]any{"role": "admin"}, m2["app_metadata"])
	assert.Equal(t, "user-1", m2["sub"])
}

func TestRefreshTokenCarriesNoProfileClaims(t *testing.T) {
	m := testManager(t)
	now := time.Now()
	pair, err := m.IssuePair(now, User{ID: "u", Email: "u@example.com", AppMetadata: map[string]any{"role": "admin"}}, "s")
	require.NoError(t, err)

	claims, err := m.Verify(pair.RefreshToken, TokenTypeRefresh, now)
	require.NoError(t, err)
	assert.Empty(t, claims.Email)
	assert.Nil(t, claims.AppMetadata)
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := testManager(t)
	p, err := m.IssuePair(time.Now(), User{ID: "u"}, "s")
	require.NoError(t, err)

	_, err = m.Verify(p.RefreshToken, TokenTypeAccess, time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, User{ID: "u"}, "s")
	require.NoError(t, err)

	_, err = m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Identify ignores expiry so sign-out still works.
	claims, err := m.Identify(p.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "s", claims.SessionID)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	m := testManager(t)
	other, err := NewManager(config.AuthConfig{JWTSecret: "other", JWTIssuer: "issuer", JWTAudience: "aud", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	require.NoError(t, err)

	p, err := other.IssuePair(time.Now(), User{ID: "u"}, "s")
	require.NoError(t, err)

	_, err = m.Verify(p.AccessToken, TokenTypeAccess, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidToken))
	_, err = m.Identify(p.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuePairRequiresIdentity(t *testing.T) {
	m := testManager(t)
	_, err := m.IssuePair(time.Now(), User{}, "s")
	assert.Error(t, err)
	_, err = m.IssuePair(time.Now(), User{ID: "u"}, "")
	assert.Error(t, err)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(config.AuthConfig{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	assert.Error(t, err)
}

func TestVerifyRejectsForeignIssuerAndAudience(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	cases := []struct {
		name     string
		issuer   string
		audience string
	}{
		{"issuer", "someone-else", "aud"},
		{"audience", "issuer", "other-aud"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			foreign, err := NewManager(config.AuthConfig{
				JWTSecret:       "secret",
				JWTIssuer:       tc.issuer,
				JWTAudience:     tc.audience,
				AccessTokenTTL:  time.Minute,
				RefreshTokenTTL: time.Hour,
			})
			require.NoError(t, err)
			pair, err := foreign.IssuePair(now, User{ID: "user-1"}, "sess-1")
			require.NoError(t, err)

			_, err = testManager(t).Verify(pair.AccessToken, TokenTypeAccess, now)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
