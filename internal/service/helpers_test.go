package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bengkel/internal/auth"
	"bengkel/internal/config"
	"bengkel/internal/database"
	"bengkel/internal/models"
	"bengkel/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, bookingID string, booking *models.Booking, status string) error {
	return m.Called(ctx, taskType, bookingID, booking, status).Error(0)
}

var (
	jakarta, _ = time.LoadLocation("Asia/Jakarta")
	// 2025-05-20 09:00 in Jakarta
	fixedNow = time.Date(2025, 5, 20, 2, 0, 0, 0, time.UTC)
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bengkel.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		TimeSlots:      append([]string(nil), models.DefaultTimeSlots...),
		MaxAdvanceDays: models.DefaultMaxAdvanceDays,
	}
}

type bookingFixture struct {
	db      *database.DB
	svc     *BookingService
	events  *mockPublisher
	worker  *mockSyncWorker
	user    models.Claims
	other   models.Claims
	admin   models.Claims
	created []*models.Booking
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	db := newTestDB(t)
	logger := zerolog.Nop()

	events := new(mockPublisher)
	events.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Maybe()
	worker := new(mockSyncWorker)
	worker.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewBookingService(db, events, worker, testBookingConfig(), jakarta, &logger)
	svc.now = func() time.Time { return fixedNow }

	fx := &bookingFixture{db: db, svc: svc, events: events, worker: worker}
	fx.user = createClaims(t, db, "budi@example.com", models.RoleUser)
	fx.other = createClaims(t, db, "siti@example.com", models.RoleUser)
	fx.admin = createClaims(t, db, "admin@example.com", models.RoleAdmin)
	return fx
}

func createClaims(t *testing.T, db *database.DB, email string, role models.Role) models.Claims {
	t.Helper()
	u := &models.User{ID: email, Username: email, Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u.Claims()
}

func budiRequest() CreateBookingRequest {
	return CreateBookingRequest{
		Nama:           "Budi",
		NomorTelepon:   "081234567890",
		Email:          "budi@example.com",
		JenisKendaraan: models.VehicleMatic,
		TypeKendaraan:  "Honda Beat",
		NoPolisi:       "B 1234 XYZ",
		Tanggal:        "2025-05-21",
		Waktu:          "09:00",
	}
}

func (fx *bookingFixture) create(t *testing.T, owner models.Claims) *models.Booking {
	t.Helper()
	b, err := fx.svc.Create(context.Background(), owner, budiRequest())
	require.NoError(t, err)
	return b
}

func newIdentityFixture(t *testing.T) (*IdentityService, *database.DB, *repository.MemoryStateRepository) {
	t.Helper()
	db := newTestDB(t)
	logger := zerolog.Nop()
	state := repository.NewMemoryStateRepository()
	tokens := auth.NewJWTManager("identity-test-secret", "bengkel", 24*time.Hour)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	svc := NewIdentityService(db, state, tokens, hasher, config.LoginRateLimitConfig{Attempts: 5, Window: time.Minute}, &logger)
	return svc, db, state
}
