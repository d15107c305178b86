package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, STATUS_INACTIVE, u.Status)
	assert.Equal(t, int64(0), u.BalanceCents)

	// The stored password is a hash, never the plaintext.
	assert.NotEqual(t, "hunter22", u.Password)
	assert.True(t, CheckPasswordHash("hunter22", u.Password))
	assert.False(t, CheckPasswordHash("wrong", u.Password))
}

func TestCreateUserValidation(t *testing.T) {
	_, err := CreateUser("al", "alice@example.com", "hunter22")
	assert.Error(t, err, "name below minimum length")

	_, err = CreateUser("alice", "not-an-email", "hunter22")
	assert.Error(t, err)

	_, err = CreateUser("alice", "alice@example.com", "short")
	assert.Error(t, err, "password below minimum length")
}
