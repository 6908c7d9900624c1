package models

import "time"

// BookingStatus is a position in the booking lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

func (s BookingStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// VehicleType is the motorcycle class (jenis kendaraan).
type VehicleType string

const (
	VehicleMatic VehicleType = "matic"
	VehicleBebek VehicleType = "bebek"
	VehicleSport VehicleType = "sport"
)

// Role is the authorization role carried in session claims.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

const (
	// DateLayout is the wire and storage format of Booking.Tanggal.
	DateLayout = "2006-01-02"

	// SlotLayout is the format of Booking.Waktu.
	SlotLayout = "15:04"

	// BookingIDPrefixLayout renders the DDMMYY part of a booking id.
	BookingIDPrefixLayout = "020106"

	// MaxDailySequence is the largest 3-digit daily sequence.
	MaxDailySequence = 999

	// DefaultTokenTTL is the session token lifetime.
	DefaultTokenTTL = 24 * time.Hour

	// MaxPasswordBytes is the bcrypt input limit, counted in bytes.
	MaxPasswordBytes = 72

	// DefaultBcryptCost matches the cost used by the hashpassword tool.
	DefaultBcryptCost = 10

	// DefaultMaxAdvanceDays limits how far ahead a service can be booked.
	DefaultMaxAdvanceDays = 60

	// DefaultTimezone is the shop's local zone; booking id prefixes use it.
	DefaultTimezone = "Asia/Jakarta"
)

// DefaultTimeSlots are the hourly service slots offered when none are configured.
var DefaultTimeSlots = []string{
	"08:00", "09:00", "10:00", "11:00", "12:00",
	"13:00", "14:00", "15:00", "16:00",
}
