package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/platform/realtime"
)

var (
	ErrNotFound = errors.New("patient not found")
	ErrLoad     = errors.New("failed to load patients")
)

// SessionChecker reports whether a session exists.
type SessionChecker interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

type Service struct {
	repo     Repository
	sessions SessionChecker
	changes  realtime.Listener
	logger   zerolog.Logger
}

func NewService(repo Repository, sessions SessionChecker, changes realtime.Listener, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		changes:  changes,
		logger:   logger.With().Str("component", "patients").Logger(),
	}
}

// LoadPatients fetches every patient of the session keyed by id. An unknown
// session or a failed read yields ErrLoad.
func (s *Service) LoadPatients(ctx context.Context, sessionID string) (map[string]*Patient, error) {
	list, err := s.list(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Patient, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Service) list(ctx context.Context, sessionID string) ([]*Patient, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: no session", ErrLoad)
	}
	if s.sessions != nil {
		ok, err := s.sessions.Exists(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: session %s not found", ErrLoad, sessionID)
		}
	}
	list, err := s.repo.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return list, nil
}

func (s *Service) GetPatient(ctx context.Context, sessionID, patientID string) (*Patient, error) {
	return s.repo.Get(ctx, sessionID, patientID)
}

// ObservePatient delivers the patient document now and after every change to
// it, including new snapshots and timeline events. It delivers nil once the
// patient is gone.
func (s *Service) ObservePatient(ctx context.Context, sessionID, patientID string, fn func(*Patient)) (realtime.Unsubscribe, error) {
	fetch := func(ctx context.Context) (*Patient, error) {
		p, err := s.repo.Get(ctx, sessionID, patientID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return p, err
	}
	return realtime.Observe(ctx, s.changes, realtime.PatientTopic(sessionID, patientID), fetch, fn,
		s.logger.With().Str("session_id", sessionID).Str("patient_id", patientID).Logger())
}

func (s *Service) CreatePatient(ctx context.Context, sessionID string, p *Patient) error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validHCPCS[p.HCPCSCode] {
		return fmt.Errorf("invalid hcpcs_code: %s", p.HCPCSCode)
	}
	for id, e := range p.Timeline {
		if e.ID == "" {
			e.ID = id
		}
		if !validEventTypes[e.Type] {
			return fmt.Errorf("invalid timeline event type: %s", e.Type)
		}
	}
	for id, snap := range p.CarePlanSnapshots {
		if snap.ID == "" {
			snap.ID = id
		}
	}
	return s.repo.Create(ctx, sessionID, p)
}

func (s *Service) AddTimelineEvent(ctx context.Context, sessionID, patientID string, e *TimelineEvent) error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !validEventTypes[e.Type] {
		return fmt.Errorf("invalid timeline event type: %s", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return s.repo.AddTimelineEvent(ctx, sessionID, patientID, e)
}

// ListPatients applies the list view options to the session's patients.
func (s *Service) ListPatients(ctx context.Context, sessionID string, opts ListOptions) ([]*Patient, error) {
	list, err := s.list(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Filter(list, opts), nil
}

// Timeline returns a patient's events most recent first.
func (s *Service) Timeline(ctx context.Context, sessionID, patientID string) ([]*TimelineEvent, error) {
	p, err := s.repo.Get(ctx, sessionID, patientID)
	if err != nil {
		return nil, err
	}
	return p.SortedTimeline(), nil
}

// PatientNames maps patient ids to display names.
func (s *Service) PatientNames(ctx context.Context, sessionID string) (map[string]string, error) {
	list, err := s.repo.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(list))
	for _, p := range list {
		names[p.ID] = p.Name
	}
	return names, nil
}

// PendingReviews lists every snapshot that still requires revision, by
// patient name and then newest first.
func (s *Service) PendingReviews(ctx context.Context, sessionID string) ([]careplan.PendingReview, error) {
	list, err := s.repo.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Pending(list), nil
}

// Pending is the pure part of PendingReviews.
func Pending(patients []*Patient) []careplan.PendingReview {
	var out []careplan.PendingReview
	for _, p := range Filter(patients, ListOptions{Sort: "name"}) {
		for _, snap := range p.SortedSnapshots() {
			if !snap.RequiresRevision {
				continue
			}
			out = append(out, careplan.PendingReview{
				PatientID:       p.ID,
				PatientName:     p.Name,
				SnapshotID:      snap.ID,
				CreatedAt:       snap.CreatedAt,
				FlagCount:       len(snap.Flags),
				SuggestionCount: len(snap.Suggestions),
			})
		}
	}
	return out
}
