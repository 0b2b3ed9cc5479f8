package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacedo/patrol-ops/models"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewService("access-secret", "refresh-secret")

	pair, err := s.GenerateTokens("user-1", models.TypePolice)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims := s.Verify(pair.AccessToken)
	require.NotNil(t, claims)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, models.TypePolice, claims.Role)

	refreshed, err := s.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refreshed.SubjectID)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := NewService("access-secret", "refresh-secret")

	assert.Nil(t, s.Verify(""))
	assert.Nil(t, s.Verify("not.a.jwt"))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s := NewService("access-secret", "refresh-secret")
	other := NewService("different-secret", "refresh-secret")

	pair, err := s.GenerateTokens("user-1", models.TypeOperator)
	require.NoError(t, err)

	assert.Nil(t, other.Verify(pair.AccessToken))
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	s := NewService("access-secret", "refresh-secret")

	pair, err := s.GenerateTokens("user-1", models.TypeManager)
	require.NoError(t, err)

	// The two families are signed with different secrets.
	_, err = s.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, s.Verify(pair.RefreshToken))
}
