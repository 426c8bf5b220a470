package handler

import (
	"context"
	"time"

	"ctfbot/internal/core/domain"
	"ctfbot/internal/core/port"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// Incoming bridges Telegram updates to the command engine. Every text
// message also refreshes the user's DM route so queued replies can find
// their way back.
type Incoming struct {
	executor port.MessageHandler
	routes   port.Routes
}

func NewIncoming(executor port.MessageHandler, routes port.Routes) *Incoming {
	return &Incoming{executor: executor, routes: routes}
}

func (h *Incoming) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	message, chatID, ok := messageFromUpdate(update)
	if !ok {
		return
	}

	l := log.With().
		Str("username", message.Username).
		Int64("chatId", chatID).
		Logger()

	l.Debug().Str("message", message.Text).Msg("received message")

	if err := h.routes.SaveRoute(ctx, message.Username, message.UserType, chatID); err != nil {
		l.Error().Err(err).Msg("failed to save dm route")
		return
	}

	if err := h.executor.Handle(ctx, message); err != nil {
		// Internal errors never reach the user; replies are fixed templates.
		l.Error().Err(err).Msg("failed to handle message")
	}
}

// messageFromUpdate maps a Telegram update to the engine's message tuple.
// Updates without a text payload or a sender are dropped.
func messageFromUpdate(update *models.Update) (domain.Message, int64, bool) {
	if update == nil || update.Message == nil {
		return domain.Message{}, 0, false
	}

	m := update.Message
	if m.Text == "" || m.From == nil {
		return domain.Message{}, 0, false
	}

	username := m.From.Username
	if username == "" {
		username = m.From.FirstName
	}

	return domain.Message{
		Username:  username,
		UserType:  domain.UserTypeTelegram,
		Text:      m.Text,
		CreatedAt: time.Unix(int64(m.Date), 0).UTC(),
	}, m.Chat.ID, true
}
