// Package bot answers admin commands sent to the shop's Telegram bot.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bengkel/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TelegramAPI is the part of tgbotapi.BotAPI the bot uses.
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

type BookingService interface {
	ListAll(ctx context.Context, caller models.Claims) ([]*models.Booking, error)
	Get(ctx context.Context, caller models.Claims, id string) (*models.Booking, error)
	Stats(ctx context.Context, caller models.Claims) (*models.BookingStats, error)
	Update(ctx context.Context, caller models.Claims, id string, patch models.BookingPatch) (*models.Booking, error)
}

type Bot struct {
	api      TelegramAPI
	bookings BookingService
	admins   map[int64]bool
	loc      *time.Location
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewBot serves commands from adminChatIDs only; other chats are ignored.
func NewBot(api TelegramAPI, bookings BookingService, adminChatIDs []int64, loc *time.Location, logger *zerolog.Logger) *Bot {
	admins := make(map[int64]bool, len(adminChatIDs))
	for _, id := range adminChatIDs {
		admins[id] = true
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api:      api,
		bookings: bookings,
		admins:   admins,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Int("admin_chats", len(b.admins)).Msg("telegram command bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info().Msg("telegram command bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	if !b.admins[msg.Chat.ID] {
		b.logger.Debug().Int64("chat_id", msg.Chat.ID).Msg("command from unknown chat ignored")
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Str("command", msg.Command()).Logger()

	b.withRecovery(&l, func() {
		reply := b.handleCommand(updateCtx, actorFor(msg), msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		if reply == "" {
			return
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
			l.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to send reply")
		}
	})
}

func (b *Bot) withRecovery(l *zerolog.Logger, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("recovered from panic in command handler")
		}
	}()
	handler()
}

// actorFor is the identity recorded for changes made through the bot.
func actorFor(msg *tgbotapi.Message) models.Claims {
	actor := models.Claims{
		ID:       fmt.Sprintf("telegram:%d", msg.Chat.ID),
		Username: "telegram",
		Role:     models.RoleAdmin,
	}
	if msg.From != nil {
		actor.ID = fmt.Sprintf("telegram:%d", msg.From.ID)
		if msg.From.UserName != "" {
			actor.Username = msg.From.UserName
		}
	}
	return actor
}
