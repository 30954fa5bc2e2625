package patient

import (
	"sort"
	"time"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/careplan"
)

var validHCPCS = map[string]bool{
	"G0556": true, "G0557": true, "G0558": true,
}

var validEventTypes = map[string]bool{
	"call": true, "appointment": true, "hospitalization": true, "lab": true, "diagnosis": true,
}

const (
	RiskHigh = "high"
	RiskLow  = "low"
)

// Patient is the patient document of one session. Timeline and snapshots
// are keyed by their document ids; Actions is filled in by observers.
type Patient struct {
	ID                string                        `json:"id"`
	Name              string                        `json:"name"`
	Conditions        []string                      `json:"conditions"`
	HCPCSCode         string                        `json:"hcpcs_code"`
	Timeline          map[string]*TimelineEvent     `json:"timeline"`
	CarePlanSnapshots map[string]*careplan.Snapshot `json:"care_plan_snapshots"`
	Actions           map[string]*action.Action     `json:"actions,omitempty"`
}

type TimelineEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// RiskLevel is high for patients with more than two chronic conditions.
func (p *Patient) RiskLevel() string {
	if len(p.Conditions) > 2 {
		return RiskHigh
	}
	return RiskLow
}

// SortedTimeline returns the timeline most recent first.
func (p *Patient) SortedTimeline() []*TimelineEvent {
	out := make([]*TimelineEvent, 0, len(p.Timeline))
	for _, e := range p.Timeline {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedSnapshots returns the care-plan snapshots newest first.
func (p *Patient) SortedSnapshots() []*careplan.Snapshot {
	out := make([]*careplan.Snapshot, 0, len(p.CarePlanSnapshots))
	for _, s := range p.CarePlanSnapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Clone deep-copies the patient so observers never share maps with a store.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Conditions = append([]string(nil), p.Conditions...)
	if p.Timeline != nil {
		cp.Timeline = make(map[string]*TimelineEvent, len(p.Timeline))
		for id, e := range p.Timeline {
			ev := *e
			cp.Timeline[id] = &ev
		}
	}
	if p.CarePlanSnapshots != nil {
		cp.CarePlanSnapshots = make(map[string]*careplan.Snapshot, len(p.CarePlanSnapshots))
		for id, s := range p.CarePlanSnapshots {
			cp.CarePlanSnapshots[id] = s.Clone()
		}
	}
	if p.Actions != nil {
		cp.Actions = make(map[string]*action.Action, len(p.Actions))
		for id, a := range p.Actions {
			cp.Actions[id] = a.Clone()
		}
	}
	return &cp
}

// Detail is the patient page: sorted timeline and snapshots plus actions.
type Detail struct {
	Patient   *Patient                  `json:"patient"`
	RiskLevel string                    `json:"risk_level"`
	Timeline  []*TimelineEvent          `json:"timeline"`
	Snapshots []*careplan.Snapshot      `json:"care_plan_snapshots"`
	Actions   map[string]*action.Action `json:"actions"`
}

// Summary is one row of the patient list.
type Summary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Conditions     []string `json:"conditions"`
	HCPCSCode      string   `json:"hcpcs_code"`
	RiskLevel      string   `json:"risk_level"`
	NeedsReview    bool     `json:"needs_review"`
	SnapshotCount  int      `json:"snapshot_count"`
	TimelineEvents int      `json:"timeline_events"`
}

func (p *Patient) Summary() Summary {
	s := Summary{
		ID:             p.ID,
		Name:           p.Name,
		Conditions:     p.Conditions,
		HCPCSCode:      p.HCPCSCode,
		RiskLevel:      p.RiskLevel(),
		SnapshotCount:  len(p.CarePlanSnapshots),
		TimelineEvents: len(p.Timeline),
	}
	for _, snap := range p.CarePlanSnapshots {
		if snap.RequiresRevision {
			s.NeedsReview = true
			break
		}
	}
	return s
}
