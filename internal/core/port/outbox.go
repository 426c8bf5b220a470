package port

import (
	"context"
	"ctfbot/internal/core/domain"
)

// Outbox exposes the queued outbound messages to the dispatcher.
type Outbox interface {
	// PendingDMs returns up to limit queued messages, oldest first.
	PendingDMs(ctx context.Context, limit int) ([]domain.OutboundMessage, error)
	// MarkSent records that a queued message was delivered.
	MarkSent(ctx context.Context, id string) error
}

// Routes maps a (username, user_type) pair to the transport address replies
// are delivered to. Routes are recorded from inbound traffic.
type Routes interface {
	SaveRoute(ctx context.Context, username, userType string, chatID int64) error
	// ChatRoute returns the chat ID for a user, or domain.ErrNoRoute.
	ChatRoute(ctx context.Context, username, userType string) (int64, error)
}
