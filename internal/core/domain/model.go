package domain

import "time"

// UserTypeTelegram is the user_type recorded for users reaching the bot
// over the Telegram transport.
const UserTypeTelegram = "telegram"

// Message is one inbound free-text message from a user on some channel.
type Message struct {
	Username  string
	UserType  string
	Text      string
	CreatedAt time.Time
}

// User is a registered participant. The submission code is assigned at
// first registration and never regenerated.
type User struct {
	ID   int64
	Code string
}

// Challenge is a scored task with a calendar-date open/close window.
// Solutions holds the acceptable answers serialized as a JSON array.
type Challenge struct {
	ID        int64
	Name      string
	OpenDate  time.Time
	CloseDate time.Time
	URL       string
	Solutions string
}

// Submission is the stored answer for one (user, challenge) pair.
type Submission struct {
	Hash      string
	IsCorrect bool
}

// Config holds the bot settings readable by the command engine.
type Config struct {
	HelpText string
}

// OutboundMessage is a queued direct message awaiting delivery.
type OutboundMessage struct {
	ID       string
	Username string
	UserType string
	Text     string
}
