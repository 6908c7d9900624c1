package database

import (
	"context"
	"testing"

	"bengkel/internal/domain"
	"bengkel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{
		ID:           "u-1",
		Username:     "budi",
		Email:        "  Budi@Example.COM ",
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleUser,
	}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.Equal(t, "budi@example.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())

	t.Run("GetByEmailCaseInsensitive", func(t *testing.T) {
		got, err := db.GetUserByEmail(ctx, "BUDI@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u-1", got.ID)
		assert.Equal(t, "$2a$10$hash", got.PasswordHash)
		assert.Equal(t, models.RoleUser, got.Role)
	})

	t.Run("GetByID", func(t *testing.T) {
		got, err := db.GetUserByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "budi", got.Username)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetUserByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = db.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		dup := &models.User{ID: "u-2", Username: "other", Email: "budi@example.com", PasswordHash: "h", Role: models.RoleUser}
		err := db.CreateUser(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		require.NoError(t, db.UpdateUserPassword(ctx, "u-1", "$2a$10$new"))
		got, err := db.GetUserByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$new", got.PasswordHash)

		assert.ErrorIs(t, db.UpdateUserPassword(ctx, "missing", "x"), domain.ErrNotFound)
	})

	t.Run("GetAll", func(t *testing.T) {
		admin := &models.User{ID: "a-1", Username: "admin", Email: "admin@example.com", PasswordHash: "h", Role: models.RoleAdmin}
		require.NoError(t, db.CreateUser(ctx, admin))

		users, err := db.GetAllUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "u-1", users[0].ID)
		assert.Equal(t, models.RoleAdmin, users[1].Role)
	})
}
