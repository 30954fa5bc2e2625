package careplan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound      = errors.New("care plan snapshot not found")
	ErrSnapshotWrite = errors.New("failed to save care plan")
)

// SnapshotStore reads and writes the snapshots embedded in a patient record.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, sessionID, patientID, snapshotID string) (*Snapshot, error)
	CreateSnapshot(ctx context.Context, sessionID, patientID string, s *Snapshot) error
}

// Archiver keeps a copy of authorized note text outside the store.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

type Service struct {
	store   SnapshotStore
	archive Archiver
	now     func() time.Time
	newID   func() string
	logger  zerolog.Logger
}

func NewService(store SnapshotStore, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With().Str("component", "careplan").Logger(),
	}
}

// SetArchiver attaches an optional archive for authorized snapshots.
func (s *Service) SetArchiver(a Archiver) {
	s.archive = a
}

// Preview replays accepted over the snapshot's note without saving anything.
func (s *Service) Preview(ctx context.Context, sessionID, patientID, snapshotID string, accepted []string) (*Preview, error) {
	src, err := s.store.GetSnapshot(ctx, sessionID, patientID, snapshotID)
	if err != nil {
		return nil, err
	}
	r := Replay(src.TextBlock, accepted)
	return &Preview{
		SnapshotID:  src.ID,
		Text:        r.Text(),
		Highlighted: r.Highlighted(),
		Accepted:    r.Accepted(),
		Unmatched:   r.Unmatched(),
	}, nil
}

// Authorize saves the reviewed note as a new snapshot. The source snapshot is
// left as it was.
func (s *Service) Authorize(ctx context.Context, sessionID, patientID, snapshotID string, accepted []string) (*Snapshot, error) {
	src, err := s.store.GetSnapshot(ctx, sessionID, patientID, snapshotID)
	if err != nil {
		return nil, err
	}
	next := s.Derive(src, Replay(src.TextBlock, accepted).Text())
	if err := s.Save(ctx, sessionID, patientID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Derive builds the snapshot that replaces src once text is approved.
func (s *Service) Derive(src *Snapshot, text string) *Snapshot {
	next := src.Clone()
	next.ID = s.newID()
	next.CreatedAt = s.now()
	next.TextBlock = text
	next.RequiresRevision = false
	return next
}

// Save writes a new snapshot and archives its text when an archive is set.
func (s *Service) Save(ctx context.Context, sessionID, patientID string, snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = s.newID()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}
	if err := s.store.CreateSnapshot(ctx, sessionID, patientID, snap); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.logger.Error().Err(err).Str("session_id", sessionID).Str("patient_id", patientID).Msg("write snapshot")
		return fmt.Errorf("%w: %v", ErrSnapshotWrite, err)
	}

	if s.archive != nil {
		key := ArchiveKey(sessionID, patientID, snap.ID)
		if err := s.archive.Put(ctx, key, []byte(snap.TextBlock)); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("archive snapshot")
		}
	}
	return nil
}

func ArchiveKey(sessionID, patientID, snapshotID string) string {
	return fmt.Sprintf("sessions/%s/patients/%s/care_plan_snapshots/%s.txt", sessionID, patientID, snapshotID)
}
