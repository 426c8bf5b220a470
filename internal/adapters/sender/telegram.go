package sender

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog/log"
)

// TelegramSender delivers direct messages through the Telegram bot API.
type TelegramSender struct {
	bot *bot.Bot
}

func NewTelegramSender(bot *bot.Bot) *TelegramSender {
	return &TelegramSender{bot: bot}
}

func (s *TelegramSender) SendDM(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.Error().Err(err).Int64("chatId", chatID).Msg("failed to send message")
		return err
	}

	return nil
}
