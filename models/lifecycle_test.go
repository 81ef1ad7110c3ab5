package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftDelete(t *testing.T) {
	article := Article{Title: "hello", Content: "world"}
	require.False(t, article.IsDeleted)
	require.Nil(t, article.DeletedAt)

	article.SoftDelete()

	assert.True(t, article.IsDeleted)
	require.NotNil(t, article.DeletedAt)
	assert.False(t, article.DeletedAt.IsZero())
}

func TestUserPassword(t *testing.T) {
	user := User{Username: "alice", Email: "alice@x.com"}
	require.NoError(t, user.SetPassword("pw123"))

	assert.NotEqual(t, "pw123", user.HashedPassword)
	assert.True(t, user.VerifyPassword("pw123"))
	assert.False(t, user.VerifyPassword("wrong"))
	assert.False(t, user.VerifyPassword(""))
}
