package memstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/domain/session"
)

type recorder struct{ topics []string }

func (r *recorder) Publish(topic string) { r.topics = append(r.topics, topic) }

var t0 = time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(rec)
	ctx := context.Background()
	if err := s.Sessions().Create(ctx, &session.Session{ID: "s1", UserID: "admin@example.com", DateCreated: t0}); err != nil {
		t.Fatal(err)
	}
	p := &patient.Patient{ID: "patient1", Name: "John Smith", HCPCSCode: "G0557",
		CarePlanSnapshots: map[string]*careplan.Snapshot{"snapshot1": {ID: "snapshot1", TextBlock: "plan"}}}
	if err := s.Patients().Create(ctx, "s1", p); err != nil {
		t.Fatal(err)
	}
	if err := s.Actions().Create(ctx, "s1", &action.Action{ID: "action1", PatientID: "patient1", Status: action.StatusActive, CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	rec.topics = nil
	return s, rec
}

func TestSessions_CreateGetExists(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	got, err := s.Sessions().Get(ctx, "s1")
	if err != nil || got.UserID != "admin@example.com" {
		t.Fatalf("unexpected session %+v, %v", got, err)
	}
	if ok, _ := s.Sessions().Exists(ctx, "s1"); !ok {
		t.Error("expected s1 to exist")
	}
	if err := s.Sessions().Create(ctx, &session.Session{ID: "s1"}); err == nil {
		t.Error("expected duplicate create to fail")
	}
	if _, err := s.Sessions().Get(ctx, "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessions_DeleteCascadesAndPublishes(t *testing.T) {
	s, rec := seeded(t)
	ctx := context.Background()

	if err := s.Sessions().Delete(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"sessions/s1", "sessions/s1/patients/patient1", "sessions/s1/patients/patient1/actions"}
	if !reflect.DeepEqual(rec.topics, want) {
		t.Errorf("got topics %v, want %v", rec.topics, want)
	}
	if _, err := s.Patients().Get(ctx, "s1", "patient1"); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("expected patient gone, got %v", err)
	}
	if list, _ := s.Actions().ListBySession(ctx, "s1"); len(list) != 0 {
		t.Errorf("expected actions gone, got %d", len(list))
	}

	rec.topics = nil
	if err := s.Sessions().Delete(ctx, "s1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if len(rec.topics) != 0 {
		t.Errorf("deleting a missing session must not publish, got %v", rec.topics)
	}
}

func TestPatients_RequireSession(t *testing.T) {
	s := New(nil)
	err := s.Patients().Create(context.Background(), "ghost", &patient.Patient{ID: "p"})
	if !errors.Is(err, patient.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPatients_ReturnCopies(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()
	p, _ := s.Patients().Get(ctx, "s1", "patient1")
	p.Name = "changed"
	p.CarePlanSnapshots["snapshot1"].TextBlock = "changed"

	again, _ := s.Patients().Get(ctx, "s1", "patient1")
	if again.Name != "John Smith" || again.CarePlanSnapshots["snapshot1"].TextBlock != "plan" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestSnapshots(t *testing.T) {
	s, rec := seeded(t)
	ctx := context.Background()
	repo := s.Patients()

	if _, err := repo.GetSnapshot(ctx, "s1", "patient1", "missing"); !errors.Is(err, careplan.ErrNotFound) {
		t.Errorf("expected careplan.ErrNotFound, got %v", err)
	}
	if err := repo.CreateSnapshot(ctx, "s1", "patient1", &careplan.Snapshot{ID: "snapshot1"}); err == nil {
		t.Error("snapshots are immutable; duplicate id must fail")
	}
	if err := repo.CreateSnapshot(ctx, "s1", "ghost", &careplan.Snapshot{ID: "x"}); !errors.Is(err, careplan.ErrNotFound) {
		t.Errorf("expected careplan.ErrNotFound for unknown patient, got %v", err)
	}
	if err := repo.CreateSnapshot(ctx, "s1", "patient1", &careplan.Snapshot{ID: "snapshot2", CreatedAt: t0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(rec.topics, []string{"sessions/s1/patients/patient1"}) {
		t.Errorf("expected patient topic published, got %v", rec.topics)
	}
}

func TestTimeline_AddOnce(t *testing.T) {
	s, rec := seeded(t)
	ctx := context.Background()
	e := &patient.TimelineEvent{ID: "event1", Type: "call", Timestamp: t0}
	s.Patients().AddTimelineEvent(ctx, "s1", "patient1", e)
	s.Patients().AddTimelineEvent(ctx, "s1", "patient1", e)
	if len(rec.topics) != 1 {
		t.Errorf("expected one publish, got %v", rec.topics)
	}
}

func TestActions_RequireExistingPatient(t *testing.T) {
	s, _ := seeded(t)
	err := s.Actions().Create(context.Background(), "s1", &action.Action{ID: "a", PatientID: "ghost"})
	if !errors.Is(err, action.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActions_DuplicateCreateKeepsLog(t *testing.T) {
	s, rec := seeded(t)
	ctx := context.Background()
	repo := s.Actions()
	repo.AppendActivity(ctx, "s1", "patient1", "action1", action.ActivityLogEntry{Timestamp: t0, Action: "call_started"})

	err := repo.Create(ctx, "s1", &action.Action{ID: "action1", PatientID: "patient1", Status: action.StatusScheduled})
	if !errors.Is(err, action.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	a, _ := repo.Get(ctx, "s1", "patient1", "action1")
	if a.Status != action.StatusActive || len(a.ActivityLog) != 1 {
		t.Errorf("expected the stored action untouched, got %+v", a)
	}
	if len(rec.topics) != 1 {
		t.Errorf("expected no publish for the rejected create, got %v", rec.topics)
	}
}

func TestActions_SetStatusAndAppend(t *testing.T) {
	s, rec := seeded(t)
	ctx := context.Background()
	repo := s.Actions()

	entry := action.ActivityLogEntry{Timestamp: t0.Add(time.Hour), Action: "status_update", Details: "Status updated to: failed"}
	if err := repo.SetStatus(ctx, "s1", "patient1", "action1", action.StatusFailed, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.topics) != 1 {
		t.Fatalf("expected one publish for the status change, got %v", rec.topics)
	}
	if err := repo.AppendActivity(ctx, "s1", "patient1", "action1", action.ActivityLogEntry{Timestamp: t0.Add(2 * time.Hour), Action: "message_failed"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := repo.Get(ctx, "s1", "patient1", "action1")
	if a.Status != action.StatusFailed || len(a.ActivityLog) != 2 || !a.UpdatedAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("unexpected action %+v", a)
	}
	if len(rec.topics) != 2 || rec.topics[0] != "sessions/s1/patients/patient1/actions" {
		t.Errorf("unexpected topics %v", rec.topics)
	}
	if err := repo.SetStatus(ctx, "s1", "patient1", "missing", action.StatusFailed, entry); !errors.Is(err, action.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList_EmptySessionIsEmptySlice(t *testing.T) {
	s := New(nil)
	list, err := s.Patients().List(context.Background(), "none")
	if err != nil || list == nil || len(list) != 0 {
		t.Errorf("expected empty slice, got %v %v", list, err)
	}
}
