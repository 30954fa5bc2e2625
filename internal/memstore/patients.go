package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/platform/realtime"
)

type patientRepo struct{ s *Store }

// stored strips what lives elsewhere (actions) and fills nil maps.
func stored(p *patient.Patient) *patient.Patient {
	cp := p.Clone()
	cp.Actions = nil
	if cp.Timeline == nil {
		cp.Timeline = make(map[string]*patient.TimelineEvent)
	}
	if cp.CarePlanSnapshots == nil {
		cp.CarePlanSnapshots = make(map[string]*careplan.Snapshot)
	}
	return cp
}

func (r patientRepo) List(_ context.Context, sessionID string) ([]*patient.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sd := r.s.sessions[sessionID]
	if sd == nil {
		return []*patient.Patient{}, nil
	}
	out := make([]*patient.Patient, 0, len(sd.patients))
	for _, pd := range sd.patients {
		out = append(out, pd.patient.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r patientRepo) Get(_ context.Context, sessionID, patientID string) (*patient.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pd := r.s.patientLocked(sessionID, patientID)
	if pd == nil {
		return nil, patient.ErrNotFound
	}
	return pd.patient.Clone(), nil
}

func (r patientRepo) Create(_ context.Context, sessionID string, p *patient.Patient) error {
	return r.s.write(func() ([]string, error) {
		sd := r.s.sessions[sessionID]
		if sd == nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, patient.ErrNotFound)
		}
		if pd := sd.patients[p.ID]; pd != nil {
			pd.patient = stored(p)
		} else {
			sd.patients[p.ID] = &patientDoc{patient: stored(p), actions: make(map[string]*action.Action)}
		}
		return []string{realtime.PatientTopic(sessionID, p.ID)}, nil
	})
}

func (r patientRepo) AddTimelineEvent(_ context.Context, sessionID, patientID string, e *patient.TimelineEvent) error {
	return r.s.write(func() ([]string, error) {
		pd := r.s.patientLocked(sessionID, patientID)
		if pd == nil {
			return nil, patient.ErrNotFound
		}
		if _, ok := pd.patient.Timeline[e.ID]; ok {
			return nil, nil
		}
		ev := *e
		pd.patient.Timeline[e.ID] = &ev
		return []string{realtime.PatientTopic(sessionID, patientID)}, nil
	})
}

func (r patientRepo) GetSnapshot(_ context.Context, sessionID, patientID, snapshotID string) (*careplan.Snapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pd := r.s.patientLocked(sessionID, patientID)
	if pd == nil {
		return nil, careplan.ErrNotFound
	}
	snap, ok := pd.patient.CarePlanSnapshots[snapshotID]
	if !ok {
		return nil, careplan.ErrNotFound
	}
	return snap.Clone(), nil
}

func (r patientRepo) CreateSnapshot(_ context.Context, sessionID, patientID string, snap *careplan.Snapshot) error {
	return r.s.write(func() ([]string, error) {
		pd := r.s.patientLocked(sessionID, patientID)
		if pd == nil {
			return nil, careplan.ErrNotFound
		}
		if _, ok := pd.patient.CarePlanSnapshots[snap.ID]; ok {
			return nil, fmt.Errorf("snapshot %s already exists", snap.ID)
		}
		pd.patient.CarePlanSnapshots[snap.ID] = snap.Clone()
		return []string{realtime.PatientTopic(sessionID, patientID)}, nil
	})
}
