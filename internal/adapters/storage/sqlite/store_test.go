package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ctfbot/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "ctfbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctfbot.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not reapply migrations.
	store, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestRegisterUserKeepsFirstCode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.GetCode(ctx, "bob", "telegram")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, store.RegisterUser(ctx, "bob", "telegram", "first"))
	require.NoError(t, store.RegisterUser(ctx, "bob", "telegram", "second"))

	code, err := store.GetCode(ctx, "bob", "telegram")
	require.NoError(t, err)
	assert.Equal(t, "first", code)

	user, err := store.GetUser(ctx, "bob", "telegram")
	require.NoError(t, err)
	assert.Equal(t, "first", user.Code)
	assert.NotZero(t, user.ID)
}

func TestUsersAreKeyedByUsernameAndType(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RegisterUser(ctx, "bob", "telegram", "tg-code"))
	require.NoError(t, store.RegisterUser(ctx, "bob", "twitter", "tw-code"))

	code, err := store.GetCode(ctx, "bob", "twitter")
	require.NoError(t, err)
	assert.Equal(t, "tw-code", code)
}

func TestChallengeRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.GetChallenge(ctx, "ctf1")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)

	challenge := domain.Challenge{
		Name:      "ctf1",
		OpenDate:  time.Date(2026, time.August, 21, 0, 0, 0, 0, time.UTC),
		CloseDate: time.Date(2026, time.September, 4, 0, 0, 0, 0, time.UTC),
		URL:       "https://ctf.example.com/ctf1",
		Solutions: `["flag"]`,
	}
	require.NoError(t, store.UpsertChallenge(ctx, challenge))

	got, err := store.GetChallenge(ctx, "ctf1")
	require.NoError(t, err)
	assert.NotZero(t, got.ID)
	assert.Equal(t, challenge.OpenDate, got.OpenDate)
	assert.Equal(t, challenge.CloseDate, got.CloseDate)
	assert.Equal(t, challenge.URL, got.URL)
	assert.Equal(t, challenge.Solutions, got.Solutions)

	// Upserting by name refreshes the window but keeps the row.
	challenge.CloseDate = time.Date(2026, time.September, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertChallenge(ctx, challenge))

	updated, err := store.GetChallenge(ctx, "ctf1")
	require.NoError(t, err)
	assert.Equal(t, got.ID, updated.ID)
	assert.Equal(t, challenge.CloseDate, updated.CloseDate)
}

func TestSubmissionUpsertLatestWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RegisterUser(ctx, "bob", "telegram", "code"))
	user, err := store.GetUser(ctx, "bob", "telegram")
	require.NoError(t, err)

	require.NoError(t, store.UpsertChallenge(ctx, domain.Challenge{
		Name:      "ctf1",
		OpenDate:  time.Date(2026, time.August, 21, 0, 0, 0, 0, time.UTC),
		CloseDate: time.Date(2026, time.September, 4, 0, 0, 0, 0, time.UTC),
		URL:       "https://ctf.example.com/ctf1",
		Solutions: `["flag"]`,
	}))
	challenge, err := store.GetChallenge(ctx, "ctf1")
	require.NoError(t, err)

	_, err = store.GetSubmission(ctx, "bob", "telegram", challenge.ID)
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)

	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddOrUpdateSubmission(ctx, user.ID, challenge.ID, true, "aaa111", now))
	require.NoError(t, store.AddOrUpdateSubmission(ctx, user.ID, challenge.ID, false, "bbb222", now.Add(time.Hour)))

	sub, err := store.GetSubmission(ctx, "bob", "telegram", challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, "bbb222", sub.Hash)
	assert.False(t, sub.IsCorrect)
}

func TestOutboxLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.QueueDM(ctx, "bob", "telegram", "first"))
	require.NoError(t, store.QueueDM(ctx, "bob", "telegram", "second"))

	pending, err := store.PendingDMs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Text)
	assert.Equal(t, "bob", pending[0].Username)
	assert.Equal(t, "telegram", pending[0].UserType)
	assert.NotEmpty(t, pending[0].ID)

	require.NoError(t, store.MarkSent(ctx, pending[0].ID))

	pending, err = store.PendingDMs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "second", pending[0].Text)
}

func TestPendingDMsHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, store.QueueDM(ctx, "bob", "telegram", "hi"))
	}

	pending, err := store.PendingDMs(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestRoutes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ChatRoute(ctx, "bob", "telegram")
	assert.ErrorIs(t, err, domain.ErrNoRoute)

	require.NoError(t, store.SaveRoute(ctx, "bob", "telegram", 100))
	require.NoError(t, store.SaveRoute(ctx, "bob", "telegram", 200))

	chatID, err := store.ChatRoute(ctx, "bob", "telegram")
	require.NoError(t, err)
	assert.Equal(t, int64(200), chatID)
}

func TestSettings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	secret, err := store.GetSecret(ctx)
	require.NoError(t, err)
	assert.Empty(t, secret)

	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.Empty(t, cfg.HelpText)

	require.NoError(t, store.SetSecret(ctx, "the cake is a lie"))
	require.NoError(t, store.SetHelpText(ctx, "send code to get started"))

	secret, err = store.GetSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "the cake is a lie", secret)

	cfg, err = store.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "send code to get started", cfg.HelpText)
}
