package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"bengkel/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "bengkel.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     "user-" + email,
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RoleUser,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func newTestBooking(userID string, createdAt time.Time) *models.Booking {
	return &models.Booking{
		UserID:         userID,
		Nama:           "Budi",
		NomorTelepon:   "081234567890",
		Email:          "b@x.com",
		JenisKendaraan: models.VehicleMatic,
		TypeKendaraan:  "Scoopy",
		NoPolisi:       "B 1234 XYZ",
		Tanggal:        "2025-06-01",
		Waktu:          "08:00",
		Status:         models.StatusPending,
		CreatedAt:      createdAt,
	}
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_MemoryAndPing(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))

	// schema must be visible through the single shared connection
	createTestUser(t, db, "mem@x.com")
	users, err := db.GetAllUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestNewDB_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	createTestUser(t, db, "keep@x.com")
	require.NoError(t, db.Close())

	// migrations already applied: must be a no-op
	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	u, err := db.GetUserByEmail(context.Background(), "keep@x.com")
	require.NoError(t, err)
	assert.Equal(t, "keep@x.com", u.Email)
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	t.Run("CreateBooking", func(t *testing.T) {
		assert.Error(t, db.CreateBooking(ctx, "010625", &models.Booking{}))
	})
	t.Run("GetAllBookings", func(t *testing.T) {
		_, err := db.GetAllBookings(ctx)
		assert.Error(t, err)
	})
	t.Run("CreateUser", func(t *testing.T) {
		assert.Error(t, db.CreateUser(ctx, &models.User{ID: "x"}))
	})
	t.Run("CreateSyncTask", func(t *testing.T) {
		assert.Error(t, db.CreateSyncTask(ctx, &models.SyncTask{}))
	})
}
