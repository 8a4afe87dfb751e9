package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("42", RoleAdmin, "clubhouse-api", "test-key", time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := Parse(pair.AccessToken, "test-key", "clubhouse-api")
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParse_WrongKey(t *testing.T) {
	pair, err := Issue("42", RoleMember, "clubhouse-api", "test-key", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "other-key", "clubhouse-api")
	assert.Error(t, err)
}

func TestParse_IssuerMismatch(t *testing.T) {
	pair, err := Issue("42", RoleMember, "someone-else", "test-key", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "test-key", "clubhouse-api")
	assert.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	pair, err := Issue("42", RoleMember, "clubhouse-api", "test-key", -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "test-key", "clubhouse-api")
	assert.Error(t, err)
}
