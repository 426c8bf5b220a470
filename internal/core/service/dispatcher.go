package service

import (
	"context"
	"errors"
	"fmt"

	"ctfbot/internal/core/domain"
	"ctfbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

const defaultBatchSize = 50

// Dispatcher drains the DM outbox, resolving each queued message to the
// chat its user was last seen on. Messages without a known route stay
// queued until the user talks to the bot.
type Dispatcher struct {
	outbox port.Outbox
	routes port.Routes
	sender port.DMSender
	batch  int
}

func NewDispatcher(outbox port.Outbox, routes port.Routes, sender port.DMSender) *Dispatcher {
	return &Dispatcher{outbox: outbox, routes: routes, sender: sender, batch: defaultBatchSize}
}

// Flush delivers one batch of pending messages. Per-message failures leave
// the message queued for the next run; only listing failures abort the batch.
func (d *Dispatcher) Flush(ctx context.Context) error {
	pending, err := d.outbox.PendingDMs(ctx, d.batch)
	if err != nil {
		return fmt.Errorf("list pending messages: %w", err)
	}

	for _, dm := range pending {
		l := log.With().
			Str("id", dm.ID).
			Str("username", dm.Username).
			Str("userType", dm.UserType).
			Logger()

		chatID, err := d.routes.ChatRoute(ctx, dm.Username, dm.UserType)
		if errors.Is(err, domain.ErrNoRoute) {
			l.Debug().Msg("no route yet, leaving message queued")
			continue
		}
		if err != nil {
			l.Error().Err(err).Msg("failed to resolve route")
			continue
		}

		if err := d.sender.SendDM(ctx, chatID, dm.Text); err != nil {
			l.Warn().Err(err).Msg("failed to deliver message, will retry")
			continue
		}

		if err := d.outbox.MarkSent(ctx, dm.ID); err != nil {
			l.Error().Err(err).Msg("failed to mark message sent")
		}
	}

	return nil
}
