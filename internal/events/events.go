package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bengkel/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingUpdated       = "booking.updated"
	EventBookingStatusChanged = "booking.status_changed"
	EventBookingCancelled     = "booking.cancelled"
)

// BookingEventPayload is the booking snapshot handed to subscribers.
type BookingEventPayload struct {
	BookingID      string               `json:"booking_id"`
	UserID         string               `json:"user_id"`
	Nama           string               `json:"nama"`
	NomorTelepon   string               `json:"nomor_telepon"`
	JenisKendaraan models.VehicleType   `json:"jenis_kendaraan"`
	TypeKendaraan  string               `json:"type_kendaraan"`
	NoPolisi       string               `json:"no_polisi"`
	Tanggal        string               `json:"tanggal"`
	Waktu          string               `json:"waktu"`
	Status         models.BookingStatus `json:"status"`
	PreviousStatus models.BookingStatus `json:"previous_status,omitempty"`
	Biaya          *decimal.Decimal     `json:"biaya,omitempty"`
	ChangedBy      string               `json:"changed_by,omitempty"`
	ChangedByID    string               `json:"changed_by_id,omitempty"`
}

// NewBookingPayload snapshots b as changed by actor.
func NewBookingPayload(b *models.Booking, previous models.BookingStatus, actor models.Claims) BookingEventPayload {
	p := BookingEventPayload{
		BookingID:      b.ID,
		UserID:         b.UserID,
		Nama:           b.Nama,
		NomorTelepon:   b.NomorTelepon,
		JenisKendaraan: b.JenisKendaraan,
		TypeKendaraan:  b.TypeKendaraan,
		NoPolisi:       b.NoPolisi,
		Tanggal:        b.Tanggal,
		Waktu:          b.Waktu,
		Status:         b.Status,
		ChangedBy:      actor.Username,
		ChangedByID:    actor.ID,
	}
	if previous != b.Status {
		p.PreviousStatus = previous
	}
	if b.Biaya != nil {
		biaya := *b.Biaya
		p.Biaya = &biaya
	}
	return p
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber of the event type synchronously. Handler
// errors are logged and never reach the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
