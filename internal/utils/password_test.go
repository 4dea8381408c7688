package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("Abc12345!", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEqual(t, "Abc12345!", hash)

	assert.True(t, VerifyPassword(hash, "Abc12345!"))
	assert.False(t, VerifyPassword(hash, "abc12345!"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	h1, err := HashPassword("same-password", bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := HashPassword("same-password", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestOpaqueToken(t *testing.T) {
	tok1, err := NewOpaqueToken(32)
	require.NoError(t, err)
	assert.Len(t, tok1, 64) // 32 bytes hex encoded

	tok2, err := NewOpaqueToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)
}

func TestHashTokenIsDeterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
