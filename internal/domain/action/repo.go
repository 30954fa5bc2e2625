package action

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("action not found")
	ErrExists   = errors.New("action already exists")
	ErrInvalid  = errors.New("invalid action update")
)

// Repository stores actions under sessions/{sid}/patients/{pid}/actions.
type Repository interface {
	ListByPatient(ctx context.Context, sessionID, patientID string) ([]*Action, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Action, error)
	Get(ctx context.Context, sessionID, patientID, actionID string) (*Action, error)
	// Create fails with ErrExists when the id is taken under the patient.
	Create(ctx context.Context, sessionID string, a *Action) error
	// SetStatus changes the status and appends entry in one write, so
	// observers never see one without the other. updated_at becomes the
	// entry's timestamp.
	SetStatus(ctx context.Context, sessionID, patientID, actionID, status string, entry ActivityLogEntry) error
	AppendActivity(ctx context.Context, sessionID, patientID, actionID string, entry ActivityLogEntry) error
}
