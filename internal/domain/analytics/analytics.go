// Package analytics derives the overview counters of a session in one pass
// over its patients and actions.
package analytics

import (
	"context"
	"fmt"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/patient"
)

// Summary is the analytics panel of the overview.
//
// MIPSScore is the share of active care plans per patient as a whole
// percentage, rounded down. With no patients the ratio is undefined: the
// score is 0 and MIPSDefined is false. Patients with several active plans can
// push the score past 100; it is not clamped.
type Summary struct {
	TotalPatients   int  `json:"total_patients"`
	ActiveCarePlans int  `json:"active_care_plans"`
	PendingActions  int  `json:"pending_actions"`
	MIPSScore       int  `json:"mips_score"`
	MIPSDefined     bool `json:"mips_defined"`
}

// Summarize counts snapshots not requiring revision and active actions.
// Actions of patients outside the list are ignored.
func Summarize(patients map[string]*patient.Patient, actions []*action.Action) Summary {
	s := Summary{TotalPatients: len(patients)}
	for _, p := range patients {
		for _, snap := range p.CarePlanSnapshots {
			if !snap.RequiresRevision {
				s.ActiveCarePlans++
			}
		}
	}
	for _, a := range actions {
		if _, ok := patients[a.PatientID]; ok && a.Status == action.StatusActive {
			s.PendingActions++
		}
	}
	if s.TotalPatients > 0 {
		s.MIPSScore = s.ActiveCarePlans * 100 / s.TotalPatients
		s.MIPSDefined = true
	}
	return s
}

type PatientSource interface {
	LoadPatients(ctx context.Context, sessionID string) (map[string]*patient.Patient, error)
}

type ActionSource interface {
	ListBySession(ctx context.Context, sessionID string) ([]*action.Action, error)
}

type Service struct {
	patients PatientSource
	actions  ActionSource
}

func NewService(patients PatientSource, actions ActionSource) *Service {
	return &Service{patients: patients, actions: actions}
}

// Compute reads the session's patients and actions and summarizes them.
func (s *Service) Compute(ctx context.Context, sessionID string) (Summary, error) {
	patients, err := s.patients.LoadPatients(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	actions, err := s.actions.ListBySession(ctx, sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("list actions: %w", err)
	}
	return Summarize(patients, actions), nil
}
