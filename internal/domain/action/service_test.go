package action

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/platform/realtime"
)

type mockRepo struct {
	hub     *realtime.Hub
	actions map[string]map[string]*Action // session -> patient/action -> action
	failing bool
}

func newMockRepo(hub *realtime.Hub) *mockRepo {
	return &mockRepo{hub: hub, actions: make(map[string]map[string]*Action)}
}

func key(patientID, actionID string) string { return patientID + "/" + actionID }

func (m *mockRepo) ListByPatient(_ context.Context, sid, pid string) ([]*Action, error) {
	if m.failing {
		return nil, errors.New("store unavailable")
	}
	var out []*Action
	for _, a := range m.actions[sid] {
		if a.PatientID == pid {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
func (m *mockRepo) ListBySession(_ context.Context, sid string) ([]*Action, error) {
	if m.failing {
		return nil, errors.New("store unavailable")
	}
	var out []*Action
	for _, a := range m.actions[sid] {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
func (m *mockRepo) Get(_ context.Context, sid, pid, aid string) (*Action, error) {
	a, ok := m.actions[sid][key(pid, aid)]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}
func (m *mockRepo) Create(_ context.Context, sid string, a *Action) error {
	if m.actions[sid] == nil {
		m.actions[sid] = make(map[string]*Action)
	}
	if _, ok := m.actions[sid][key(a.PatientID, a.ID)]; ok {
		return ErrExists
	}
	m.actions[sid][key(a.PatientID, a.ID)] = a.Clone()
	m.publish(sid, a.PatientID)
	return nil
}
func (m *mockRepo) SetStatus(_ context.Context, sid, pid, aid, status string, e ActivityLogEntry) error {
	a, ok := m.actions[sid][key(pid, aid)]
	if !ok {
		return ErrNotFound
	}
	a.Status, a.UpdatedAt = status, e.Timestamp
	a.ActivityLog = append(a.ActivityLog, e)
	m.publish(sid, pid)
	return nil
}
func (m *mockRepo) AppendActivity(_ context.Context, sid, pid, aid string, e ActivityLogEntry) error {
	a, ok := m.actions[sid][key(pid, aid)]
	if !ok {
		return ErrNotFound
	}
	a.ActivityLog = append(a.ActivityLog, e)
	m.publish(sid, pid)
	return nil
}
func (m *mockRepo) publish(sid, pid string) {
	if m.hub != nil {
		m.hub.Publish(realtime.ActionsTopic(sid, pid))
	}
}

type namesStub map[string]string

func (n namesStub) PatientNames(context.Context, string) (map[string]string, error) { return n, nil }

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *realtime.Hub) {
	hub := realtime.NewHub(zerolog.Nop())
	repo := newMockRepo(hub)
	svc := NewService(repo, hub, zerolog.Nop())
	svc.now = func() time.Time { return t0 }
	return svc, repo, hub
}

func TestCreate_Defaults(t *testing.T) {
	svc, _, _ := newTestService()
	a := &Action{ID: "action1", PatientID: "patient1", Type: "call_patient", Description: "Call"}
	if err := svc.Create(context.Background(), "s1", a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusActive {
		t.Errorf("expected default status active, got %q", a.Status)
	}
	if !a.CreatedAt.Equal(t0) || !a.UpdatedAt.Equal(t0) {
		t.Errorf("expected timestamps defaulted to now, got %v %v", a.CreatedAt, a.UpdatedAt)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	cases := []*Action{
		{PatientID: "patient1"},
		{ID: "action1"},
		{ID: "action1", PatientID: "patient1", Status: "pending"},
	}
	for _, a := range cases {
		if err := svc.Create(context.Background(), "s1", a); err == nil {
			t.Errorf("expected error for %+v", a)
		}
	}
}

func TestUpdateStatus_RecordsActivity(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, "s1", &Action{ID: "action1", PatientID: "patient1", Type: "call_patient", Description: "Call"})

	if err := svc.UpdateStatus(ctx, "s1", "patient1", "action1", StatusSuccessful); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := repo.Get(ctx, "s1", "patient1", "action1")
	if a.Status != StatusSuccessful {
		t.Errorf("expected successful, got %q", a.Status)
	}
	if len(a.ActivityLog) != 1 || a.ActivityLog[0].Details != "Status updated to: successful" {
		t.Errorf("expected status activity entry, got %+v", a.ActivityLog)
	}
}

// Observers of the action set must never see the new status without the
// log entry that records it.
func TestUpdateStatus_ObserversSeeStatusAndEntryTogether(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, "s1", &Action{ID: "action1", PatientID: "patient1", Type: "call_patient", Description: "Call"})

	type delivery struct {
		status string
		logs   int
	}
	var seen []delivery
	unsub, err := svc.ObserveActions(ctx, "s1", "patient1", func(m map[string]*Action) {
		a := m["action1"]
		seen = append(seen, delivery{a.Status, len(a.ActivityLog)})
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	if err := svc.UpdateStatus(ctx, "s1", "patient1", "action1", StatusFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected initial delivery plus one change, got %+v", seen)
	}
	for _, d := range seen {
		if d.status == StatusFailed && d.logs == 0 {
			t.Errorf("observed failed status without its log entry: %+v", seen)
		}
	}
	if seen[1] != (delivery{StatusFailed, 1}) {
		t.Errorf("unexpected final delivery %+v", seen[1])
	}
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.UpdateStatus(context.Background(), "s1", "patient1", "action1", "done")
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.UpdateStatus(context.Background(), "s1", "patient1", "missing", StatusFailed)
	if !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendActivity_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.AppendActivity(context.Background(), "s1", "patient1", "action1", ActivityLogEntry{Description: "x"})
	if err == nil {
		t.Fatal("expected error for missing action")
	}
}

func TestAppendActivity_DefaultsTimestamp(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, "s1", &Action{ID: "action1", PatientID: "patient1"})

	err := svc.AppendActivity(ctx, "s1", "patient1", "action1", ActivityLogEntry{Action: "call_attempted", Description: "Call attempt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := repo.Get(ctx, "s1", "patient1", "action1")
	if !a.ActivityLog[0].Timestamp.Equal(t0) {
		t.Errorf("expected timestamp defaulted, got %v", a.ActivityLog[0].Timestamp)
	}
}

func TestObserveActions_FullSetOnEveryChange(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, "s1", &Action{ID: "action1", PatientID: "patient1"})

	var sets []map[string]*Action
	stop, err := svc.ObserveActions(ctx, "s1", "patient1", func(m map[string]*Action) { sets = append(sets, m) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stop()

	svc.Create(ctx, "s1", &Action{ID: "action2", PatientID: "patient1"})
	svc.Create(ctx, "s1", &Action{ID: "action3", PatientID: "patient2"})

	if len(sets) != 2 {
		t.Fatalf("expected initial + one update, got %d deliveries", len(sets))
	}
	if len(sets[0]) != 1 || len(sets[1]) != 2 {
		t.Errorf("expected sets of 1 then 2, got %d then %d", len(sets[0]), len(sets[1]))
	}
	if sets[1]["action2"] == nil {
		t.Error("expected action2 keyed by id")
	}
}

func TestObserveActions_InitialFailure(t *testing.T) {
	svc, repo, hub := newTestService()
	repo.failing = true
	_, err := svc.ObserveActions(context.Background(), "s1", "patient1", func(map[string]*Action) {})
	if err == nil {
		t.Fatal("expected error")
	}
	if hub.ListenerCount(realtime.ActionsTopic("s1", "patient1")) != 0 {
		t.Error("expected no listener after failed observe")
	}
}

func TestFeed_MostRecentFirst(t *testing.T) {
	actions := []*Action{
		{ID: "action1", PatientID: "patient1", ActivityLog: []ActivityLogEntry{
			{Timestamp: t0.Add(-48 * time.Hour), Action: "call_initiated"},
			{Timestamp: t0.Add(-24 * time.Hour), Action: "medication_confirmation"},
		}},
		{ID: "action2", PatientID: "patient2", ActivityLog: []ActivityLogEntry{
			{Timestamp: t0.Add(-36 * time.Hour), Action: "request_submitted"},
		}},
	}
	feed := Feed(actions)
	if len(feed) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(feed))
	}
	want := []string{"medication_confirmation", "request_submitted", "call_initiated"}
	for i, w := range want {
		if feed[i].Action != w {
			t.Errorf("entry %d: expected %s, got %s", i, w, feed[i].Action)
		}
	}
	if feed[1].ActionID != "action2" || feed[1].PatientID != "patient2" {
		t.Errorf("expected flattened ids, got %+v", feed[1])
	}
}

func TestRequiresAttention(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Create(ctx, "s1", &Action{ID: "action1", PatientID: "patient1", Status: StatusFailed})
	svc.Create(ctx, "s1", &Action{ID: "action2", PatientID: "ghost", Status: StatusFailed})
	svc.Create(ctx, "s1", &Action{ID: "action3", PatientID: "patient1", Status: StatusActive})

	items, err := svc.RequiresAttention(ctx, "s1", namesStub{"patient1": "John Smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 failed actions, got %d", len(items))
	}
	names := map[string]string{}
	for _, it := range items {
		names[it.Action.ID] = it.PatientName
	}
	if names["action1"] != "John Smith" || names["action2"] != "Unknown Patient" {
		t.Errorf("unexpected names %v", names)
	}
}
