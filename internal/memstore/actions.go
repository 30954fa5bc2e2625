package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/platform/realtime"
)

type actionRepo struct{ s *Store }

func sortActions(out []*action.Action) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].PatientID != out[j].PatientID {
			return out[i].PatientID < out[j].PatientID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func (r actionRepo) ListByPatient(_ context.Context, sessionID, patientID string) ([]*action.Action, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*action.Action{}
	if pd := r.s.patientLocked(sessionID, patientID); pd != nil {
		for _, a := range pd.actions {
			out = append(out, a.Clone())
		}
	}
	sortActions(out)
	return out, nil
}

func (r actionRepo) ListBySession(_ context.Context, sessionID string) ([]*action.Action, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*action.Action{}
	if sd := r.s.sessions[sessionID]; sd != nil {
		for _, pd := range sd.patients {
			for _, a := range pd.actions {
				out = append(out, a.Clone())
			}
		}
	}
	sortActions(out)
	return out, nil
}

func (r actionRepo) Get(_ context.Context, sessionID, patientID, actionID string) (*action.Action, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pd := r.s.patientLocked(sessionID, patientID)
	if pd == nil || pd.actions[actionID] == nil {
		return nil, action.ErrNotFound
	}
	return pd.actions[actionID].Clone(), nil
}

// Create stores a under its patient. The patient must exist.
func (r actionRepo) Create(_ context.Context, sessionID string, a *action.Action) error {
	return r.s.write(func() ([]string, error) {
		pd := r.s.patientLocked(sessionID, a.PatientID)
		if pd == nil {
			return nil, fmt.Errorf("patient %s does not exist in session %s: %w", a.PatientID, sessionID, action.ErrNotFound)
		}
		if pd.actions[a.ID] != nil {
			return nil, fmt.Errorf("%s/%s: %w", a.PatientID, a.ID, action.ErrExists)
		}
		pd.actions[a.ID] = a.Clone()
		return []string{realtime.ActionsTopic(sessionID, a.PatientID)}, nil
	})
}

func (r actionRepo) update(sessionID, patientID, actionID string, fn func(a *action.Action)) error {
	return r.s.write(func() ([]string, error) {
		pd := r.s.patientLocked(sessionID, patientID)
		if pd == nil || pd.actions[actionID] == nil {
			return nil, action.ErrNotFound
		}
		fn(pd.actions[actionID])
		return []string{realtime.ActionsTopic(sessionID, patientID)}, nil
	})
}

func (r actionRepo) SetStatus(_ context.Context, sessionID, patientID, actionID, status string, entry action.ActivityLogEntry) error {
	return r.update(sessionID, patientID, actionID, func(a *action.Action) {
		a.Status = status
		a.UpdatedAt = entry.Timestamp
		a.ActivityLog = append(a.ActivityLog, entry)
	})
}

func (r actionRepo) AppendActivity(_ context.Context, sessionID, patientID, actionID string, entry action.ActivityLogEntry) error {
	return r.update(sessionID, patientID, actionID, func(a *action.Action) {
		a.ActivityLog = append(a.ActivityLog, entry)
		if entry.Timestamp.After(a.UpdatedAt) {
			a.UpdatedAt = entry.Timestamp
		}
	})
}
