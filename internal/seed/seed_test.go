package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/domain/session"
	"github.com/primcare/dashboard/internal/memstore"
	"github.com/primcare/dashboard/internal/platform/realtime"
)

var now = time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)

func TestEventTime_StaysInsideTypeWindow(t *testing.T) {
	g := NewGenerator(42, now)
	tests := []struct {
		kind       string
		start, end int
	}{
		{"appointment", 8, 16},
		{"lab", 6, 10},
		{"call", 9, 16},
		{"hospitalization", 0, 24},
		{"diagnosis", 8, 17},
		{"other", 9, 17},
	}
	for _, tt := range tests {
		for i := 0; i < 50; i++ {
			ts := g.EventTime(-7, tt.kind)
			if ts.Hour() < tt.start || ts.Hour() >= tt.end {
				t.Fatalf("%s: hour %d outside [%d,%d)", tt.kind, ts.Hour(), tt.start, tt.end)
			}
			if ts.Day() != 13 || ts.Month() != time.April {
				t.Fatalf("%s: expected 2025-04-13, got %s", tt.kind, ts)
			}
		}
	}
}

func TestGenerator_SameSeedSameTimes(t *testing.T) {
	a := NewGenerator(7, now).Patients()
	b := NewGenerator(7, now).Patients()
	for i := range a {
		for id, e := range a[i].Timeline {
			if !e.Timestamp.Equal(b[i].Timeline[id].Timestamp) {
				t.Fatalf("%s/%s differs between runs", a[i].ID, id)
			}
		}
	}
}

func TestPatients_Fixtures(t *testing.T) {
	ps := NewGenerator(1, now).Patients()
	if len(ps) != 7 {
		t.Fatalf("expected 7 patients, got %d", len(ps))
	}
	john := ps[0]
	if john.Name != "John Smith" || john.RiskLevel() != patient.RiskHigh {
		t.Errorf("unexpected first patient %s risk %s", john.Name, john.RiskLevel())
	}
	snap := john.CarePlanSnapshots["snapshot1"]
	if !snap.RequiresRevision || len(snap.Flags) != 4 || len(snap.Suggestions) != 5 {
		t.Errorf("unexpected snapshot1 %+v", snap)
	}
	if !snap.CreatedAt.Equal(now.Add(-7 * day)) {
		t.Errorf("expected snapshot1 seven days old, got %s", snap.CreatedAt)
	}
	for _, p := range ps[1:] {
		if p.RiskLevel() != patient.RiskLow {
			t.Errorf("%s: expected low risk", p.ID)
		}
	}
}

func TestFixtureNote_EveryRuleHasALine(t *testing.T) {
	for _, r := range careplan.DefaultRules {
		if !strings.Contains(apcmNote, r.MatchLine) {
			t.Errorf("rule %s: no line contains %q", r.Name, r.MatchLine)
		}
	}
}

func TestActions_Fixtures(t *testing.T) {
	acts := NewGenerator(1, now).Actions()
	if len(acts) != 9 {
		t.Fatalf("expected 9 actions, got %d", len(acts))
	}
	failed := 0
	for _, a := range acts {
		if a.Status == action.StatusFailed {
			failed++
		}
		if len(a.ActivityLog) != 2 {
			t.Errorf("%s/%s: expected two log entries", a.PatientID, a.ID)
		}
		if a.UpdatedAt.Before(a.CreatedAt) {
			t.Errorf("%s/%s: updated before created", a.PatientID, a.ID)
		}
	}
	if failed != 4 {
		t.Errorf("expected 4 failed actions, got %d", failed)
	}
}

func newServices(t *testing.T) (*patient.Service, *action.Service) {
	t.Helper()
	hub := realtime.NewHub(zerolog.Nop())
	store := memstore.New(hub)
	if err := store.Sessions().Create(context.Background(), &session.Session{ID: "s1", DateCreated: now}); err != nil {
		t.Fatal(err)
	}
	return patient.NewService(store.Patients(), nil, hub, zerolog.Nop()),
		action.NewService(store.Actions(), hub, zerolog.Nop())
}

func TestPopulate(t *testing.T) {
	patients, actions := newServices(t)
	s := NewSeeder(patients, actions, zerolog.Nop()).WithSeed(3)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Populate(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := patients.LoadPatients(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded) != 7 {
		t.Fatalf("expected 7 patients, got %d", len(loaded))
	}
	if len(loaded["patient1"].Timeline) != 6 {
		t.Errorf("expected 6 timeline events, got %d", len(loaded["patient1"].Timeline))
	}
	all, err := actions.ListBySession(ctx, "s1")
	if err != nil || len(all) != 9 {
		t.Fatalf("expected 9 actions, got %d (%v)", len(all), err)
	}
	a, err := actions.Get(ctx, "s1", "patient3", "action2")
	if err != nil || a.Type != "care_plan_call_patient" || a.Status != action.StatusFailed {
		t.Errorf("unexpected patient3/action2 %+v, %v", a, err)
	}
}

func TestPopulate_UnknownSession(t *testing.T) {
	patients, actions := newServices(t)
	err := NewSeeder(patients, actions, zerolog.Nop()).Populate(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for a missing session")
	}
	if !strings.Contains(err.Error(), "seed patient patient1") {
		t.Errorf("expected the first patient in the error, got %v", err)
	}
}

type failingActions struct{}

func (failingActions) Create(context.Context, string, *action.Action) error {
	return errors.New("write refused")
}

func TestPopulate_ActionWriteFails(t *testing.T) {
	patients, _ := newServices(t)
	err := NewSeeder(patients, failingActions{}, zerolog.Nop()).Populate(context.Background(), "s1")
	if err == nil || !strings.Contains(err.Error(), "write refused") {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}
