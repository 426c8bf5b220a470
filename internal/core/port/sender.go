package port

import (
	"context"
	"ctfbot/internal/core/domain"
)

// DMSender delivers one direct message to a chat.
type DMSender interface {
	SendDM(ctx context.Context, chatID int64, text string) error
}

// MessageHandler processes one inbound message. All observable effects go
// through the collaborators the implementation was constructed with.
type MessageHandler interface {
	Handle(ctx context.Context, message domain.Message) error
}
