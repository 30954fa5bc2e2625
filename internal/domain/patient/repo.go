package patient

import (
	"context"

	"github.com/primcare/dashboard/internal/domain/careplan"
)

// Repository stores patient documents under sessions/{sid}/patients. Snapshot
// misses are reported as careplan.ErrNotFound so the repository can back the
// care-plan service directly.
type Repository interface {
	List(ctx context.Context, sessionID string) ([]*Patient, error)
	Get(ctx context.Context, sessionID, patientID string) (*Patient, error)
	Create(ctx context.Context, sessionID string, p *Patient) error
	AddTimelineEvent(ctx context.Context, sessionID, patientID string, e *TimelineEvent) error
	GetSnapshot(ctx context.Context, sessionID, patientID, snapshotID string) (*careplan.Snapshot, error)
	CreateSnapshot(ctx context.Context, sessionID, patientID string, s *careplan.Snapshot) error
}
