package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserCreatesLazily(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)

	created, err := users.EnsureUser("Ravi@Example.com", "Ravi")
	require.NoError(t, err)
	assert.Equal(t, "ravi@example.com", created.Email)
	assert.Equal(t, "Ravi", created.Name)

	// second sign-in returns the same record, name untouched
	again, err := users.EnsureUser("ravi@example.com", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Ravi", again.Name)
}

func TestEnsureUserRequiresEmail(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)

	_, err := users.EnsureUser("", "Ravi")
	assert.Error(t, err)
}

func TestEnsureUserDefaultsName(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)

	user, err := users.EnsureUser("anon@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "Anonymous User", user.Name)
}

func TestUpdateName(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db)

	user, err := users.EnsureUser("ravi@example.com", "Ravi")
	require.NoError(t, err)

	renamed, err := users.UpdateName(user.ID, "Ravi K")
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", renamed.Name)

	fetched, err := users.GetByEmail("ravi@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", fetched.Name)
}
