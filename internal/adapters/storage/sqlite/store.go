// Package sqlite persists users, challenges, submissions and the DM outbox
// in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ctfbot/internal/core/domain"

	"github.com/gofrs/uuid/v5"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// Store implements the core's persistence collaborator. Registration and
// submission upserts are single ON CONFLICT statements, so concurrent
// writes for one key cannot interleave.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func (s *Store) GetCode(ctx context.Context, username, userType string) (string, error) {
	var code string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT code FROM users WHERE username = ? AND user_type = ?`,
		username, userType,
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get code: %w", err)
	}

	return code, nil
}

// RegisterUser inserts the user unless one already exists; the first stored
// code always wins.
func (s *Store) RegisterUser(ctx context.Context, username, userType, code string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (username, user_type, code, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (username, user_type) DO NOTHING`,
		username, userType, code, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	return nil
}

func (s *Store) GetUser(ctx context.Context, username, userType string) (domain.User, error) {
	var user domain.User
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, code FROM users WHERE username = ? AND user_type = ?`,
		username, userType,
	).Scan(&user.ID, &user.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (s *Store) GetChallenge(ctx context.Context, name string) (domain.Challenge, error) {
	var (
		challenge domain.Challenge
		openDate  string
		closeDate string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, open_date, close_date, url, solutions FROM challenges WHERE name = ?`,
		name,
	).Scan(&challenge.ID, &challenge.Name, &openDate, &closeDate, &challenge.URL, &challenge.Solutions)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}

	if challenge.OpenDate, err = parseDate(openDate); err != nil {
		return domain.Challenge{}, fmt.Errorf("challenge %s open date: %w", name, err)
	}
	if challenge.CloseDate, err = parseDate(closeDate); err != nil {
		return domain.Challenge{}, fmt.Errorf("challenge %s close date: %w", name, err)
	}

	return challenge, nil
}

// UpsertChallenge creates or refreshes a challenge by name. Used by config
// seeding at startup, not by the command engine.
func (s *Store) UpsertChallenge(ctx context.Context, challenge domain.Challenge) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO challenges (name, open_date, close_date, url, solutions) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   open_date = excluded.open_date,
		   close_date = excluded.close_date,
		   url = excluded.url,
		   solutions = excluded.solutions`,
		challenge.Name,
		challenge.OpenDate.Format(dateLayout),
		challenge.CloseDate.Format(dateLayout),
		challenge.URL,
		challenge.Solutions,
	)
	if err != nil {
		return fmt.Errorf("upsert challenge %s: %w", challenge.Name, err)
	}

	return nil
}

func (s *Store) GetSubmission(ctx context.Context, username, userType string,
	challengeID int64) (domain.Submission, error) {
	var (
		submission domain.Submission
		isCorrect  int
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT sub.hash, sub.is_correct
		 FROM submissions sub
		 JOIN users u ON u.id = sub.user_id
		 WHERE u.username = ? AND u.user_type = ? AND sub.challenge_id = ?`,
		username, userType, challengeID,
	).Scan(&submission.Hash, &isCorrect)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	submission.IsCorrect = isCorrect != 0

	return submission, nil
}

func (s *Store) AddOrUpdateSubmission(ctx context.Context, userID, challengeID int64,
	isCorrect bool, hash string, submittedAt time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO submissions (user_id, challenge_id, is_correct, hash, submitted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, challenge_id) DO UPDATE SET
		   is_correct = excluded.is_correct,
		   hash = excluded.hash,
		   submitted_at = excluded.submitted_at`,
		userID, challengeID, boolToInt(isCorrect), hash, toMillis(submittedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}

	return nil
}

func (s *Store) GetSecret(ctx context.Context) (string, error) {
	return s.setting(ctx, "secret")
}

func (s *Store) SetSecret(ctx context.Context, secret string) error {
	return s.setSetting(ctx, "secret", secret)
}

func (s *Store) GetConfig(ctx context.Context) (domain.Config, error) {
	helpText, err := s.setting(ctx, "help_text")
	if err != nil {
		return domain.Config{}, err
	}

	return domain.Config{HelpText: helpText}, nil
}

func (s *Store) SetHelpText(ctx context.Context, helpText string) error {
	return s.setSetting(ctx, "help_text", helpText)
}

func (s *Store) QueueDM(ctx context.Context, username, userType, text string) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("queue dm: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO outbox (id, username, user_type, body, queued_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), username, userType, text, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("queue dm: %w", err)
	}

	return nil
}

func (s *Store) PendingDMs(ctx context.Context, limit int) ([]domain.OutboundMessage, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, username, user_type, body FROM outbox
		 WHERE sent_at IS NULL ORDER BY queued_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending dms: %w", err)
	}
	defer rows.Close()

	var pending []domain.OutboundMessage
	for rows.Next() {
		var dm domain.OutboundMessage
		if err := rows.Scan(&dm.ID, &dm.Username, &dm.UserType, &dm.Text); err != nil {
			return nil, fmt.Errorf("scan pending dm: %w", err)
		}
		pending = append(pending, dm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending dms: %w", err)
	}

	return pending, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE outbox SET sent_at = ? WHERE id = ?`, toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("mark dm sent: %w", err)
	}

	return nil
}

func (s *Store) SaveRoute(ctx context.Context, username, userType string, chatID int64) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO dm_routes (username, user_type, chat_id, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (username, user_type) DO UPDATE SET
		   chat_id = excluded.chat_id,
		   updated_at = excluded.updated_at`,
		username, userType, chatID, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save route: %w", err)
	}

	return nil
}

func (s *Store) ChatRoute(ctx context.Context, username, userType string) (int64, error) {
	var chatID int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT chat_id FROM dm_routes WHERE username = ? AND user_type = ?`,
		username, userType,
	).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNoRoute
	}
	if err != nil {
		return 0, fmt.Errorf("get route: %w", err)
	}

	return chatID, nil
}

// setting returns the empty string for keys that were never set.
func (s *Store) setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}

	return value, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}

	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}

	return 0
}
