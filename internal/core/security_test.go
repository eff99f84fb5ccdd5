// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple 1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	valid, err := VerifyPassword("correct horse battery staple 1", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassword("password1", "not-a-hash")
	assert.Error(t, err)
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	hash, err := HashPassword("password1")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		valid, _, err := VerifyPasswordTimingSafe("password1", &hash)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("nil hash always fails", func(t *testing.T) {
		valid, rehash, err := VerifyPasswordTimingSafe("password1", nil)
		require.NoError(t, err)
		assert.False(t, valid)
		assert.Empty(t, rehash)
	})

	t.Run("empty hash always fails", func(t *testing.T) {
		empty := ""
		valid, _, err := VerifyPasswordTimingSafe("password1", &empty)
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestTokenHashing(t *testing.T) {
	token, err := GenerateRefreshToken()
	require.NoError(t, err)

	hash := HashToken(token)
	assert.Len(t, hash, 64)

	assert.True(t, CompareTokenHash(token, hash))
	assert.False(t, CompareTokenHash("other-token", hash))
}

func TestGenerateLicenseKey(t *testing.T) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := GenerateLicenseKey()
		require.NoError(t, err)

		assert.Regexp(
			t,
			`^[A-Z2-9]{4}-[A-Z2-9]{4}-[A-Z2-9]{4}-[A-Z2-9]{4}$`,
			key,
		)

		for _, c := range strings.ReplaceAll(key, "-", "") {
			assert.Contains(t, alphabet, string(c))
		}

		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestGenerateDownloadToken(t *testing.T) {
	a, err := GenerateDownloadToken()
	require.NoError(t, err)
	b, err := GenerateDownloadToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "+")
}
