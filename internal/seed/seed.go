// Package seed writes the sandbox patients into a new dashboard session.
// Timestamps are placed relative to the generator's clock so the timeline
// always has upcoming and past events.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/domain/patient"
)

const day = 24 * time.Hour

// hourWindows bounds the random time of day per timeline event type as
// [start, end).
var hourWindows = map[string][2]int{
	"appointment":     {8, 16},
	"lab":             {6, 10},
	"call":            {9, 16},
	"hospitalization": {0, 24},
	"diagnosis":       {8, 17},
}

var defaultWindow = [2]int{9, 17}

// Generator builds the fixture documents. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// NewGenerator returns a generator anchored at now. A zero seed picks a
// time-based one.
func NewGenerator(seed int64, now time.Time) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: now}
}

// EventTime places an event daysOffset calendar days from now at a random
// time inside the window for its type.
func (g *Generator) EventTime(daysOffset int, eventType string) time.Time {
	w, ok := hourWindows[eventType]
	if !ok {
		w = defaultWindow
	}
	hour := w[0] + g.rng.Intn(w[1]-w[0])
	minute := g.rng.Intn(60)
	second := g.rng.Intn(60)
	y, m, d := g.now.Date()
	return time.Date(y, m, d+daysOffset, hour, minute, second, 0, g.now.Location())
}

func (g *Generator) ago(days float64) time.Time {
	return g.now.Add(-time.Duration(days * float64(day)))
}

// Patients returns the sandbox patients with their timelines and snapshots.
func (g *Generator) Patients() []*patient.Patient {
	out := make([]*patient.Patient, 0, len(fixtures))
	for _, f := range fixtures {
		p := &patient.Patient{
			ID:                f.id,
			Name:              f.name,
			Conditions:        append([]string(nil), f.conditions...),
			HCPCSCode:         f.hcpcs,
			Timeline:          make(map[string]*patient.TimelineEvent, len(f.events)),
			CarePlanSnapshots: make(map[string]*careplan.Snapshot, len(f.snapshots)),
		}
		for _, e := range f.events {
			p.Timeline[e.id] = &patient.TimelineEvent{
				ID:          e.id,
				Type:        e.kind,
				Timestamp:   g.EventTime(e.days, e.kind),
				Description: e.desc,
			}
		}
		for _, s := range f.snapshots {
			p.CarePlanSnapshots[s.id] = &careplan.Snapshot{
				ID:               s.id,
				CreatedAt:        g.ago(s.daysAgo),
				TextBlock:        s.text,
				RequiresRevision: s.requiresRevision,
				Flags:            append([]string{}, s.flags...),
				Suggestions:      append([]string{}, s.suggestions...),
			}
		}
		out = append(out, p)
	}
	return out
}

// Actions returns the sandbox actions of every patient.
func (g *Generator) Actions() []*action.Action {
	var out []*action.Action
	for _, f := range fixtures {
		for _, a := range f.actions {
			act := &action.Action{
				ID:          a.id,
				PatientID:   f.id,
				Type:        a.kind,
				Description: a.description,
				Status:      a.status,
				CreatedAt:   g.ago(a.createdAgo),
				UpdatedAt:   g.ago(a.updatedAgo),
			}
			for _, l := range a.log {
				act.ActivityLog = append(act.ActivityLog, action.ActivityLogEntry{
					Timestamp:   g.ago(l.daysAgo),
					Action:      l.action,
					Details:     l.details,
					Description: l.description,
				})
			}
			out = append(out, act)
		}
	}
	return out
}

// PatientWriter stores a patient document under a session.
type PatientWriter interface {
	CreatePatient(ctx context.Context, sessionID string, p *patient.Patient) error
}

// ActionWriter stores an action under its patient.
type ActionWriter interface {
	Create(ctx context.Context, sessionID string, a *action.Action) error
}

// Seeder populates sessions with the sandbox fixtures.
type Seeder struct {
	patients PatientWriter
	actions  ActionWriter
	seed     int64
	now      func() time.Time
	logger   zerolog.Logger
}

func NewSeeder(patients PatientWriter, actions ActionWriter, logger zerolog.Logger) *Seeder {
	return &Seeder{
		patients: patients,
		actions:  actions,
		now:      time.Now,
		logger:   logger.With().Str("component", "seed").Logger(),
	}
}

// WithSeed fixes the random source so repeated runs produce the same times.
func (s *Seeder) WithSeed(seed int64) *Seeder {
	s.seed = seed
	return s
}

// Populate writes every fixture patient, then its actions. The session must
// already exist.
func (s *Seeder) Populate(ctx context.Context, sessionID string) error {
	g := NewGenerator(s.seed, s.now())
	for _, p := range g.Patients() {
		if err := s.patients.CreatePatient(ctx, sessionID, p); err != nil {
			return fmt.Errorf("seed patient %s: %w", p.ID, err)
		}
	}
	actions := g.Actions()
	for _, a := range actions {
		if err := s.actions.Create(ctx, sessionID, a); err != nil {
			return fmt.Errorf("seed action %s/%s: %w", a.PatientID, a.ID, err)
		}
	}
	s.logger.Info().Str("session_id", sessionID).
		Int("patients", len(fixtures)).Int("actions", len(actions)).
		Msg("session seeded")
	return nil
}
