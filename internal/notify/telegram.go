// Package notify pushes booking events to the shop's Telegram admin chats.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bengkel/internal/breaker"
	"bengkel/internal/domain"
	"bengkel/internal/events"
	"bengkel/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BotSender is the live Telegram client.
type BotSender struct {
	*tgbotapi.BotAPI
}

// clientTimeout stays above the 60s long-poll used by the command bot.
const clientTimeout = 90 * time.Second

func NewBotSender(token string, debug bool) (*BotSender, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: clientTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = debug
	return &BotSender{BotAPI: api}, nil
}

const queueSize = 100

// Notifier delivers events from a bounded queue so publishers never wait on
// Telegram. Events arriving while the queue is full are dropped.
type Notifier struct {
	sender  domain.TelegramSender
	chatIDs []int64
	cb      *gobreaker.CircuitBreaker
	queue   chan *events.Event
	logger  *zerolog.Logger
}

func NewNotifier(sender domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		sender:  sender,
		chatIDs: append([]int64(nil), chatIDs...),
		cb:      breaker.New("telegram", 30*time.Second, logger),
		queue:   make(chan *events.Event, queueSize),
		logger:  logger,
	}
}

// Subscribe registers the notifier for the booking events admins care about.
// Nothing is sent until Start runs.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, n.enqueue)
	bus.Subscribe(events.EventBookingCancelled, n.enqueue)
	bus.Subscribe(events.EventBookingStatusChanged, n.enqueue)
}

// Start delivers queued events until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			if err := n.HandleEvent(ev); err != nil {
				n.logger.Debug().Err(err).Str("event", ev.Type).Msg("notification delivered partially")
			}
		}
	}
}

func (n *Notifier) enqueue(ev *events.Event) error {
	select {
	case n.queue <- ev:
		return nil
	default:
		metrics.IncNotification("dropped")
		return fmt.Errorf("notification queue full, dropped %s", ev.Type)
	}
}

// HandleEvent sends one message per admin chat and returns the last send
// error.
func (n *Notifier) HandleEvent(ev *events.Event) error {
	var payload events.BookingEventPayload
	if err := ev.Decode(&payload); err != nil {
		return err
	}

	text := FormatMessage(ev.Type, payload)
	if text == "" {
		return nil
	}

	var lastErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		_, err := breaker.Call(n.cb, func() (tgbotapi.Message, error) {
			return n.sender.Send(msg)
		})
		if err != nil {
			metrics.IncNotification("failed")
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Str("booking_id", payload.BookingID).Msg("telegram notification failed")
			lastErr = err
			continue
		}
		metrics.IncNotification("sent")
	}
	return lastErr
}

// FormatMessage renders the admin notification text for an event.
func FormatMessage(eventType string, p events.BookingEventPayload) string {
	var title string
	switch eventType {
	case events.EventBookingCreated:
		title = "Booking baru"
	case events.EventBookingCancelled:
		title = "Booking dibatalkan"
	case events.EventBookingStatusChanged:
		title = "Status booking berubah"
	default:
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s #%s\n", title, p.BookingID)
	fmt.Fprintf(&sb, "Nama: %s (%s)\n", p.Nama, p.NomorTelepon)
	fmt.Fprintf(&sb, "Kendaraan: %s %s, %s\n", p.JenisKendaraan, p.TypeKendaraan, p.NoPolisi)
	fmt.Fprintf(&sb, "Jadwal: %s %s\n", p.Tanggal, p.Waktu)
	if p.PreviousStatus != "" {
		fmt.Fprintf(&sb, "Status: %s -> %s\n", p.PreviousStatus, p.Status)
	} else {
		fmt.Fprintf(&sb, "Status: %s\n", p.Status)
	}
	if p.Biaya != nil {
		fmt.Fprintf(&sb, "Biaya: Rp %s\n", p.Biaya.StringFixed(0))
	}
	if p.ChangedBy != "" {
		fmt.Fprintf(&sb, "Oleh: %s\n", p.ChangedBy)
	}
	return strings.TrimRight(sb.String(), "\n")
}
