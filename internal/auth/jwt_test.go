// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/digitalstore/internal/config"
	"github.com/angelamos/digitalstore/internal/core"
)

func newTestJWTManager(t *testing.T, accessExpire time.Duration) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(privatePath, publicPath))

	manager, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     privatePath,
		PublicKeyPath:      publicPath,
		AccessTokenExpire:  accessExpire,
		RefreshTokenExpire: 168 * time.Hour,
		Issuer:             "digitalstore-test",
		Audience:           "digitalstore-api",
	})
	require.NoError(t, err)

	return manager
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)
	ctx := context.Background()

	signed, err := manager.CreateAccessToken(AccessTokenClaims{
		UserID:       "user-1",
		Role:         "admin",
		TokenVersion: 3,
	})
	require.NoError(t, err)

	claims, err := manager.VerifyAccessToken(ctx, signed)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
}

func TestVerifyAccessTokenRejectsExpired(t *testing.T) {
	manager := newTestJWTManager(t, -time.Minute)
	ctx := context.Background()

	signed, err := manager.CreateAccessToken(AccessTokenClaims{
		UserID: "user-1",
		Role:   "user",
	})
	require.NoError(t, err)

	_, err = manager.VerifyAccessToken(ctx, signed)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyAccessTokenRejectsGarbage(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)
	ctx := context.Background()

	_, err := manager.VerifyAccessToken(ctx, "not.a.token")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyAccessTokenRejectsForeignKey(t *testing.T) {
	issuer := newTestJWTManager(t, 15*time.Minute)
	verifier := newTestJWTManager(t, 15*time.Minute)
	ctx := context.Background()

	signed, err := issuer.CreateAccessToken(AccessTokenClaims{
		UserID: "user-1",
		Role:   "user",
	})
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(ctx, signed)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestCreateRefreshToken(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)

	data, err := manager.CreateRefreshToken("user-1", "")
	require.NoError(t, err)

	assert.NotEmpty(t, data.Token)
	assert.NotEmpty(t, data.FamilyID)
	assert.True(t, data.ExpiresAt.After(time.Now()))

	assert.True(t, manager.VerifyRefreshTokenHash(data.Token, data.Hash))
	assert.False(t, manager.VerifyRefreshTokenHash("other", data.Hash))
}

func TestRefreshTokenKeepsFamily(t *testing.T) {
	manager := newTestJWTManager(t, 15*time.Minute)

	data, err := manager.CreateRefreshToken("user-1", "family-1")
	require.NoError(t, err)

	assert.Equal(t, "family-1", data.FamilyID)
	assert.NotEqual(t, data.Token, data.Hash)
}
