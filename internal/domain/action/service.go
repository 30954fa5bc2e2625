package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/platform/realtime"
)

// PatientNamer resolves the display names of a session's patients.
type PatientNamer interface {
	PatientNames(ctx context.Context, sessionID string) (map[string]string, error)
}

const unknownPatient = "Unknown Patient"

type Service struct {
	repo    Repository
	changes realtime.Listener
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(repo Repository, changes realtime.Listener, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		changes: changes,
		now:     time.Now,
		logger:  logger.With().Str("component", "actions").Logger(),
	}
}

// ListByPatient returns the actions of one patient keyed by action id.
func (s *Service) ListByPatient(ctx context.Context, sessionID, patientID string) (map[string]*Action, error) {
	list, err := s.repo.ListByPatient(ctx, sessionID, patientID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Action, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	return out, nil
}

// ObserveActions delivers the patient's full action set now and again after
// every insert or update in the collection.
func (s *Service) ObserveActions(ctx context.Context, sessionID, patientID string, fn func(map[string]*Action)) (realtime.Unsubscribe, error) {
	fetch := func(ctx context.Context) (map[string]*Action, error) {
		return s.ListByPatient(ctx, sessionID, patientID)
	}
	return realtime.Observe(ctx, s.changes, realtime.ActionsTopic(sessionID, patientID), fetch, fn,
		s.logger.With().Str("session_id", sessionID).Str("patient_id", patientID).Logger())
}

func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*Action, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

func (s *Service) Get(ctx context.Context, sessionID, patientID, actionID string) (*Action, error) {
	return s.repo.Get(ctx, sessionID, patientID, actionID)
}

func (s *Service) Create(ctx context.Context, sessionID string, a *Action) error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if a.PatientID == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("%w: invalid status: %s", ErrInvalid, a.Status)
	}
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	return s.repo.Create(ctx, sessionID, a)
}

// UpdateStatus moves an action to status and records the change in its
// activity log.
func (s *Service) UpdateStatus(ctx context.Context, sessionID, patientID, actionID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: invalid status: %s", ErrInvalid, status)
	}
	return s.repo.SetStatus(ctx, sessionID, patientID, actionID, status, ActivityLogEntry{
		Timestamp:   s.now(),
		Action:      "status_update",
		Details:     "Status updated to: " + status,
		Description: "Action status changed",
	})
}

func (s *Service) AppendActivity(ctx context.Context, sessionID, patientID, actionID string, entry ActivityLogEntry) error {
	if entry.Action == "" {
		return fmt.Errorf("%w: entry action is required", ErrInvalid)
	}
	if entry.Description == "" {
		return fmt.Errorf("%w: entry description is required", ErrInvalid)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	return s.repo.AppendActivity(ctx, sessionID, patientID, actionID, entry)
}

// ActivityFeed flattens the activity logs of every action in the session,
// most recent first.
func (s *Service) ActivityFeed(ctx context.Context, sessionID string) ([]FeedEntry, error) {
	list, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Feed(list), nil
}

// Feed is the pure part of ActivityFeed.
func Feed(actions []*Action) []FeedEntry {
	var feed []FeedEntry
	for _, a := range actions {
		for _, entry := range a.ActivityLog {
			feed = append(feed, FeedEntry{ActionID: a.ID, PatientID: a.PatientID, ActivityLogEntry: entry})
		}
	}
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})
	return feed
}

// RequiresAttention lists the failed actions of the session.
func (s *Service) RequiresAttention(ctx context.Context, sessionID string, names PatientNamer) ([]AttentionItem, error) {
	list, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var byID map[string]string
	if names != nil {
		byID, err = names.PatientNames(ctx, sessionID)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("resolve patient names")
		}
	}

	items := []AttentionItem{}
	for _, a := range list {
		if a.Status != StatusFailed {
			continue
		}
		name, ok := byID[a.PatientID]
		if !ok {
			name = unknownPatient
		}
		items = append(items, AttentionItem{Action: a, PatientName: name})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Action.UpdatedAt.After(items[j].Action.UpdatedAt)
	})
	return items, nil
}

// IsNotFound reports whether err means the action or its patient is missing.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
