package domain

import (
	"context"
	"time"

	"bengkel/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	GetAllUsers(ctx context.Context) ([]*models.User, error)
}

type BookingRepository interface {
	// CreateBooking allocates the next daily sequence for prefix, sets
	// booking.ID and persists the booking in one atomic step.
	CreateBooking(ctx context.Context, prefix string, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// UpdateBookingWithVersion writes booking only if the stored version
	// still equals version, and bumps booking.Version on success.
	UpdateBookingWithVersion(ctx context.Context, booking *models.Booking, version int64) error
	GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error)
	GetAllBookings(ctx context.Context) ([]*models.Booking, error)
}

// Repository is the storage collaborator shared by the services.
type Repository interface {
	UserRepository
	BookingRepository
	Ping(ctx context.Context) error
	Close() error
}

// StateRepository keeps short-lived session state outside the main store.
type StateRepository interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID string, booking *models.Booking, status string) error
}

type TokenManager interface {
	Issue(claims models.Claims) (*models.Session, error)
	Verify(token string) (*models.Session, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
