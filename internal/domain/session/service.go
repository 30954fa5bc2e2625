package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/platform/realtime"
)

var (
	ErrNotFound           = errors.New("session not found")
	ErrSessionCreate      = errors.New("failed to create session")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Credentials is the fixed sandbox login.
type Credentials struct {
	Email    string
	Password string
}

// InvalidCredentialsMessage is shown to the user on a failed login.
func (c Credentials) InvalidCredentialsMessage() string {
	return fmt.Sprintf("Invalid credentials. Use %s / %s", c.Email, c.Password)
}

type Service struct {
	repo    Repository
	changes realtime.Listener
	creds   Credentials
	now     func() time.Time
	newID   func() string
	logger  zerolog.Logger
}

func NewService(repo Repository, changes realtime.Listener, creds Credentials, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		changes: changes,
		creds:   creds,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger.With().Str("component", "sessions").Logger(),
	}
}

func (s *Service) Credentials() Credentials { return s.creds }

// Authenticate checks the sandbox credentials. It never touches the store.
func (s *Service) Authenticate(email, password string) error {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.creds.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.creds.Password)) == 1
	if !emailOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// CreateSession persists a new session for userID and returns its id.
func (s *Service) CreateSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user_id is required", ErrSessionCreate)
	}
	sess := &Session{ID: s.newID(), UserID: userID, DateCreated: s.now()}
	if err := s.repo.Create(ctx, sess); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("create session")
		return "", fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}
	s.logger.Info().Str("session_id", sess.ID).Str("user_id", userID).Msg("session created")
	return sess.ID, nil
}

// DestroySession deletes the session and its documents. Destroying an
// unknown or empty id is a no-op.
func (s *Service) DestroySession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	s.logger.Info().Str("session_id", id).Msg("session destroyed")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}

// ObserveSession delivers the session record now and on every change, and
// nil once the session no longer exists.
func (s *Service) ObserveSession(ctx context.Context, id string, fn func(*Session)) (realtime.Unsubscribe, error) {
	fetch := func(ctx context.Context) (*Session, error) {
		sess, err := s.repo.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return sess, err
	}
	return realtime.Observe(ctx, s.changes, realtime.SessionTopic(id), fetch, fn,
		s.logger.With().Str("session_id", id).Logger())
}
