package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndVerify(t *testing.T) {
	stored, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.Contains(t, stored, ".")

	assert.True(t, VerifyPassword("correct horse battery staple", stored))
	assert.False(t, VerifyPassword("wrong password", stored))
}

func TestPasswordHashIsSalted(t *testing.T) {
	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("same password", first))
	assert.True(t, VerifyPassword("same password", second))
}

func TestVerifyPasswordRejectsMalformedStored(t *testing.T) {
	assert.False(t, VerifyPassword("anything", "no-separator"))
	assert.False(t, VerifyPassword("anything", ""))
}

func TestVerifyPasswordRejectsTamperedHash(t *testing.T) {
	stored, err := HashPassword("secret")
	require.NoError(t, err)

	salt, hash, ok := strings.Cut(stored, ".")
	require.True(t, ok)

	flipped := "0"
	if hash[0] == '0' {
		flipped = "1"
	}
	assert.False(t, VerifyPassword("secret", salt+"."+flipped+hash[1:]))
}
