package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserGenerateAPIKey(t *testing.T) {
	u := &User{ID: 1}

	key, err := u.GenerateAPIKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	assert.True(t, strings.HasPrefix(key, "mtp_"))
	assert.NotEmpty(t, u.APIKeyHash)
	assert.Equal(t, key[:16], u.APIKeyPrefix)
	assert.NotNil(t, u.APIKeyCreatedAt)
	assert.Equal(t, HashAPIKey(key), u.APIKeyHash)
}

func TestHashAPIKeyTrimsWhitespace(t *testing.T) {
	assert.Equal(t, HashAPIKey("mtp_abc"), HashAPIKey("  mtp_abc \n"))
}

func TestCreateUserValidation(t *testing.T) {
	u, err := CreateUser("Alice Example", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, ROLE_STANDARD, u.Role)
	assert.Equal(t, STATUS_ACTIVE, u.Status)
	assert.False(t, u.IsSuperadmin())
	assert.True(t, u.IsActive())

	_, err = CreateUser("Al", "not-an-email")
	require.Error(t, err)
}

func TestUserHasCardOnFile(t *testing.T) {
	u := &User{}
	assert.False(t, u.HasCardOnFile())
	u.CardLast4 = "4242"
	assert.True(t, u.HasCardOnFile())
}

func TestUsageItemIsSettled(t *testing.T) {
	it := &UsageItem{}
	assert.False(t, it.IsSettled())
}
