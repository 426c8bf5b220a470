package port

import (
	"context"
	"ctfbot/internal/core/domain"
	"time"
)

// Store is the persistence collaborator the command engine runs against.
// Lookups return the domain.Err*NotFound sentinels when a record is absent.
// Implementations must make RegisterUser and AddOrUpdateSubmission atomic
// per key; the engine performs its read-modify-write without locking.
type Store interface {
	// GetCode returns the submission code for a user, or domain.ErrUserNotFound.
	GetCode(ctx context.Context, username, userType string) (string, error)
	// RegisterUser persists a user with the given code. If the user already
	// exists the stored code is kept, so concurrent first registrations
	// cannot produce two different codes.
	RegisterUser(ctx context.Context, username, userType, code string) error
	// GetUser returns the stored user record, or domain.ErrUserNotFound.
	GetUser(ctx context.Context, username, userType string) (domain.User, error)
	// GetChallenge returns a challenge by name, or domain.ErrChallengeNotFound.
	GetChallenge(ctx context.Context, name string) (domain.Challenge, error)
	// GetSubmission returns the stored submission for a user and challenge,
	// or domain.ErrSubmissionNotFound.
	GetSubmission(ctx context.Context, username, userType string, challengeID int64) (domain.Submission, error)
	// AddOrUpdateSubmission upserts the submission keyed by (user, challenge).
	// A later write overwrites the earlier one entirely.
	AddOrUpdateSubmission(ctx context.Context, userID, challengeID int64, isCorrect bool, hash string, submittedAt time.Time) error
	// GetSecret returns the configured secret, or the empty string when none
	// is set.
	GetSecret(ctx context.Context) (string, error)
	// GetConfig returns the bot settings.
	GetConfig(ctx context.Context) (domain.Config, error)
	// QueueDM enqueues one outbound direct message. Fire and forget; delivery
	// happens asynchronously.
	QueueDM(ctx context.Context, username, userType, text string) error
}
