package service

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ctfbot/internal/core/domain"
	"ctfbot/internal/core/domain/intent"
	"ctfbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

// CodeFunc produces a fresh submission code.
type CodeFunc func() (string, error)

// NowFunc supplies the current time for open/close comparisons.
type NowFunc func() time.Time

const (
	codeReply             = "your submission code is %s"
	unknownChallengeReply = "unknown challenge :( "
	notStartedReply       = "%s has not started. begins %s"
	verdictReply          = "%s submission is %s"
	receivedReply         = "%s answer recieved. challenge ends %s"
	storedReply           = "%s = %s and is %s"
	noSubmissionReply     = "you have not submitted an answer for %s"
	ongoingReply          = "%s is still ongoing. challenge ends %s"
	infoReply             = "%s can be viewed @ %s. start=%s, end=%s"

	stairsReply    = "i am protected."
	protectedReply = "the internet makes you stupid. :D"
)

const dateLayout = "2006-01-02"

// Executor turns classified messages into store actions and queues at most
// one reply per message. It holds no state of its own; every call is a pure
// function of the message and the store.
type Executor struct {
	store   port.Store
	newCode CodeFunc
	now     NowFunc
}

// NewExecutor wires an Executor to its store. newCode and now may be nil,
// which selects crypto/rand codes and the wall clock.
func NewExecutor(store port.Store, newCode CodeFunc, now NowFunc) *Executor {
	if newCode == nil {
		newCode = GenerateCode
	}
	if now == nil {
		now = time.Now
	}

	return &Executor{store: store, newCode: newCode, now: now}
}

// GenerateCode returns a 128-bit random submission code as lowercase hex.
func GenerateCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate submission code: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// Handle classifies one inbound message and executes the matched command.
// Unrecognized messages are dropped without a reply.
func (e *Executor) Handle(ctx context.Context, msg domain.Message) error {
	in := intent.Classify(msg.Text)

	l := log.With().
		Str("username", msg.Username).
		Str("userType", msg.UserType).
		Logger()
	l.Debug().Str("message", msg.Text).Int("intent", int(in.Kind)).Msg("handling message")

	switch in.Kind {
	case intent.RequestCode:
		return e.registerUser(ctx, msg)
	case intent.Submit:
		return e.submitAnswer(ctx, msg, in.Challenge, in.Hash)
	case intent.Check:
		return e.checkAnswer(ctx, msg, in.Challenge)
	case intent.RequestSecret:
		return e.sendSecret(ctx, msg)
	case intent.EasterEggStairs:
		return e.queue(ctx, msg, stairsReply)
	case intent.EasterEggProtected:
		return e.queue(ctx, msg, protectedReply)
	case intent.ChallengeInfo:
		return e.challengeInfo(ctx, msg, in.Challenge)
	case intent.RequestHelp:
		return e.sendHelp(ctx, msg)
	default:
		return nil
	}
}

func (e *Executor) registerUser(ctx context.Context, msg domain.Message) error {
	code, err := e.ensureCode(ctx, msg)
	if err != nil {
		return err
	}

	return e.queue(ctx, msg, fmt.Sprintf(codeReply, code))
}

// ensureCode returns the user's submission code, registering the user with
// a fresh code first if needed. The code is re-read after registering so a
// concurrent registration still yields the single stored code.
func (e *Executor) ensureCode(ctx context.Context, msg domain.Message) (string, error) {
	code, err := e.store.GetCode(ctx, msg.Username, msg.UserType)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return "", err
	}

	code, err = e.newCode()
	if err != nil {
		return "", err
	}
	if err := e.store.RegisterUser(ctx, msg.Username, msg.UserType, code); err != nil {
		return "", err
	}

	return e.store.GetCode(ctx, msg.Username, msg.UserType)
}

func (e *Executor) submitAnswer(ctx context.Context, msg domain.Message, name, hash string) error {
	challenge, err := e.store.GetChallenge(ctx, name)
	if errors.Is(err, domain.ErrChallengeNotFound) {
		return e.queue(ctx, msg, unknownChallengeReply)
	}
	if err != nil {
		return err
	}

	today := e.today()
	if challenge.OpenDate.After(today) {
		return e.queue(ctx, msg, fmt.Sprintf(notStartedReply, name, formatDate(challenge.OpenDate)))
	}

	user, err := e.store.GetUser(ctx, msg.Username, msg.UserType)
	if errors.Is(err, domain.ErrUserNotFound) {
		if _, err = e.ensureCode(ctx, msg); err != nil {
			return err
		}
		user, err = e.store.GetUser(ctx, msg.Username, msg.UserType)
	}
	if err != nil {
		return err
	}

	correct, err := verifySubmission(user.Code, challenge.Solutions, hash)
	if err != nil {
		return fmt.Errorf("challenge %s: %w", name, err)
	}

	// Submissions are frozen once the challenge closes so score histories
	// stay intact. The verdict is still computed and reported.
	if !challenge.CloseDate.After(today) {
		return e.queue(ctx, msg, fmt.Sprintf(verdictReply, name, verdict(correct)))
	}

	err = e.store.AddOrUpdateSubmission(ctx, user.ID, challenge.ID, correct, hash, msg.CreatedAt)
	if err != nil {
		return err
	}

	return e.queue(ctx, msg, fmt.Sprintf(receivedReply, name, formatDate(challenge.CloseDate)))
}

func (e *Executor) checkAnswer(ctx context.Context, msg domain.Message, name string) error {
	challenge, err := e.store.GetChallenge(ctx, name)
	if errors.Is(err, domain.ErrChallengeNotFound) {
		return e.queue(ctx, msg, unknownChallengeReply)
	}
	if err != nil {
		return err
	}

	today := e.today()
	if challenge.OpenDate.After(today) {
		return e.queue(ctx, msg, fmt.Sprintf(notStartedReply, name, formatDate(challenge.OpenDate)))
	}

	// While the challenge runs, correctness is never revealed here; users
	// would retry for free off check feedback instead of submitting.
	if challenge.CloseDate.After(today) {
		return e.queue(ctx, msg, fmt.Sprintf(ongoingReply, name, formatDate(challenge.CloseDate)))
	}

	sub, err := e.store.GetSubmission(ctx, msg.Username, msg.UserType, challenge.ID)
	if errors.Is(err, domain.ErrSubmissionNotFound) {
		return e.queue(ctx, msg, fmt.Sprintf(noSubmissionReply, name))
	}
	if err != nil {
		return err
	}

	return e.queue(ctx, msg, fmt.Sprintf(storedReply, name, sub.Hash, verdict(sub.IsCorrect)))
}

func (e *Executor) sendSecret(ctx context.Context, msg domain.Message) error {
	secret, err := e.store.GetSecret(ctx)
	if err != nil {
		return err
	}
	if secret == "" {
		return nil
	}

	return e.queue(ctx, msg, secret)
}

func (e *Executor) challengeInfo(ctx context.Context, msg domain.Message, name string) error {
	challenge, err := e.store.GetChallenge(ctx, name)
	if errors.Is(err, domain.ErrChallengeNotFound) {
		return e.queue(ctx, msg, unknownChallengeReply)
	}
	if err != nil {
		return err
	}

	info := fmt.Sprintf(infoReply, name, challenge.URL,
		formatDate(challenge.OpenDate), formatDate(challenge.CloseDate))

	return e.queue(ctx, msg, info)
}

func (e *Executor) sendHelp(ctx context.Context, msg domain.Message) error {
	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	return e.queue(ctx, msg, cfg.HelpText)
}

func (e *Executor) queue(ctx context.Context, msg domain.Message, text string) error {
	return e.store.QueueDM(ctx, msg.Username, msg.UserType, text)
}

// today truncates the injected clock to calendar-date granularity in UTC,
// matching how challenge open/close dates are stored.
func (e *Executor) today() time.Time {
	now := e.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// verifySubmission checks the submitted hash against sha1(solution+code)
// for every acceptable solution. The comparison is case-sensitive.
func verifySubmission(code, solutionsJSON, hash string) (bool, error) {
	var solutions []string
	if err := json.Unmarshal([]byte(solutionsJSON), &solutions); err != nil {
		return false, fmt.Errorf("malformed solution list: %w", err)
	}

	for _, solution := range solutions {
		sum := sha1.Sum([]byte(solution + code))
		if hex.EncodeToString(sum[:]) == hash {
			return true, nil
		}
	}

	return false, nil
}

func verdict(correct bool) string {
	if correct {
		return "CORRECT"
	}

	return "incorrect"
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
