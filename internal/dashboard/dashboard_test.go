package dashboard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/analytics"
	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/domain/session"
	"github.com/primcare/dashboard/internal/memstore"
	"github.com/primcare/dashboard/internal/platform/realtime"
	"github.com/primcare/dashboard/internal/seed"
)

type testEnv struct {
	hub      *realtime.Hub
	store    *memstore.Store
	sessions *session.Service
	patients *patient.Service
	actions  *action.Service
	deps     Deps
	registry *Registry
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	hub := realtime.NewHub(logger)
	store := memstore.New(hub)

	sessions := session.NewService(store.Sessions(), hub, session.Credentials{Email: "admin@example.com", Password: "password"}, logger)
	patients := patient.NewService(store.Patients(), sessions, hub, logger)
	actions := action.NewService(store.Actions(), hub, logger)

	deps := Deps{
		Sessions:   sessions,
		Patients:   patients,
		Actions:    actions,
		Analytics:  analytics.NewService(patients, actions),
		CarePlans:  careplan.NewService(store.Patients(), logger),
		Seeder:     seed.NewSeeder(patients, actions, logger).WithSeed(11),
		Navigation: Navigation{LoginPath: "/login", OverviewPath: "/overview"},
	}
	return &testEnv{
		hub:      hub,
		store:    store,
		sessions: sessions,
		patients: patients,
		actions:  actions,
		deps:     deps,
		registry: NewRegistry(deps, logger),
	}
}

func (e *testEnv) open(t *testing.T) (string, *Controller) {
	t.Helper()
	ctx := context.Background()
	sid, err := e.registry.Open(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	c, err := e.registry.Get(ctx, sid)
	if err != nil {
		t.Fatalf("get controller: %v", err)
	}
	return sid, c
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpen_SeedsAndLoadsState(t *testing.T) {
	env := newEnv(t)
	sid, c := env.open(t)

	st := c.State()
	if st.SessionID != sid || st.Session == nil || st.Session.UserID != "admin@example.com" {
		t.Fatalf("unexpected session in state: %+v", st.Session)
	}
	if st.Redirect != "/overview?session_id="+sid {
		t.Errorf("unexpected redirect %q", st.Redirect)
	}
	if st.Loading || st.Error != "" {
		t.Errorf("expected idle state without banner, got loading=%v error=%q", st.Loading, st.Error)
	}
	if len(st.Patients) != 7 {
		t.Fatalf("expected 7 patients, got %d", len(st.Patients))
	}
	if len(st.Patients["patient3"].Actions) != 2 {
		t.Errorf("expected patient3 to carry 2 actions, got %d", len(st.Patients["patient3"].Actions))
	}

	want := analytics.Summary{TotalPatients: 7, ActiveCarePlans: 7, PendingActions: 1, MIPSScore: 100, MIPSDefined: true}
	if st.Analytics != want {
		t.Errorf("analytics = %+v, want %+v", st.Analytics, want)
	}
}

func TestController_ActionsStayLive(t *testing.T) {
	env := newEnv(t)
	sid, c := env.open(t)

	if err := env.actions.UpdateStatus(context.Background(), sid, "patient1", "action1", action.StatusFailed); err != nil {
		t.Fatalf("update status: %v", err)
	}

	a := c.State().Patients["patient1"].Actions["action1"]
	if a.Status != action.StatusFailed {
		t.Errorf("expected live status failed, got %s", a.Status)
	}
	last := a.ActivityLog[len(a.ActivityLog)-1]
	if last.Action != "status_update" {
		t.Errorf("expected a status_update entry, got %+v", last)
	}
}

func TestController_PatientStaysLive(t *testing.T) {
	env := newEnv(t)
	sid, c := env.open(t)

	err := env.patients.AddTimelineEvent(context.Background(), sid, "patient2", &patient.TimelineEvent{
		ID: "event9", Type: "call", Timestamp: time.Now(), Description: "Follow-up call",
	})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	if _, ok := c.State().Patients["patient2"].Timeline["event9"]; !ok {
		t.Error("expected the new timeline event in state")
	}
}

func TestController_DestroyThenLoadRedirectsToLogin(t *testing.T) {
	env := newEnv(t)
	sid, c := env.open(t)
	ctx := context.Background()

	if err := c.DestroySession(ctx); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if env.store.SessionCount() != 0 {
		t.Error("expected the session to be deleted")
	}
	if n := env.hub.ListenerCount(realtime.SessionTopic(sid)); n != 0 {
		t.Errorf("expected session listener disposed, got %d", n)
	}
	if n := env.hub.ListenerCount(realtime.ActionsTopic(sid, "patient1")); n != 0 {
		t.Errorf("expected action listener disposed, got %d", n)
	}

	if err := c.LoadPatients(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := c.LoadAnalytics(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	st := c.State()
	if st.Redirect != "/login" || st.SessionID != "" || len(st.Patients) != 0 {
		t.Errorf("expected cleared state pointing at login, got %+v", st)
	}
	if st.Error != "" {
		t.Errorf("a missing session is not a load failure, got banner %q", st.Error)
	}

	if err := c.DestroySession(ctx); err != nil {
		t.Errorf("second destroy must be a no-op, got %v", err)
	}
}

func TestController_SessionDeletedElsewhere(t *testing.T) {
	env := newEnv(t)
	sid, c := env.open(t)
	ctx := context.Background()

	if err := env.sessions.DestroySession(ctx, sid); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	eventually(t, func() bool { return env.registry.Len() == 0 })

	if err := c.LoadPatients(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if c.State().Redirect != "/login" {
		t.Errorf("expected login redirect, got %q", c.State().Redirect)
	}
	if _, err := env.registry.Get(ctx, sid); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession from registry, got %v", err)
	}
}

type failingSessions struct {
	SessionManager
}

func (failingSessions) CreateSession(context.Context, string) (string, error) {
	return "", errors.New("store unavailable")
}

func TestController_CreateSessionFailure(t *testing.T) {
	env := newEnv(t)
	deps := env.deps
	deps.Sessions = failingSessions{env.sessions}
	c := NewController(deps, zerolog.Nop())

	if _, err := c.CreateSession(context.Background(), "admin@example.com"); err == nil {
		t.Fatal("expected error")
	}
	st := c.State()
	if st.Error != MsgSessionCreate {
		t.Errorf("expected banner %q, got %q", MsgSessionCreate, st.Error)
	}
	if st.SessionID != "" || len(st.Patients) != 0 {
		t.Error("no data must be loaded after a failed create")
	}
}

type failingSeeder struct{}

func (failingSeeder) Populate(context.Context, string) error { return errors.New("seed write failed") }

func TestController_SeedFailureRemovesSession(t *testing.T) {
	env := newEnv(t)
	deps := env.deps
	deps.Seeder = failingSeeder{}
	c := NewController(deps, zerolog.Nop())

	_, err := c.CreateSession(context.Background(), "admin@example.com")
	if !errors.Is(err, session.ErrSessionCreate) {
		t.Fatalf("expected ErrSessionCreate, got %v", err)
	}
	if env.store.SessionCount() != 0 {
		t.Error("expected the half-seeded session to be removed")
	}
	if c.State().Error != MsgSessionCreate {
		t.Errorf("unexpected banner %q", c.State().Error)
	}
}

type flakyPatients struct {
	PatientLoader
	fail bool
}

func (f *flakyPatients) LoadPatients(ctx context.Context, sid string) (map[string]*patient.Patient, error) {
	if f.fail {
		return nil, patient.ErrLoad
	}
	return f.PatientLoader.LoadPatients(ctx, sid)
}

func TestController_LoadFailureSetsBanner(t *testing.T) {
	env := newEnv(t)
	flaky := &flakyPatients{PatientLoader: env.patients}
	deps := env.deps
	deps.Patients = flaky
	c := NewController(deps, zerolog.Nop())
	ctx := context.Background()

	if _, err := c.CreateSession(ctx, "admin@example.com"); err != nil {
		t.Fatalf("create: %v", err)
	}
	flaky.fail = true

	if err := c.LoadPatients(ctx); !errors.Is(err, patient.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
	st := c.State()
	if st.Error != MsgLoadPatients {
		t.Errorf("expected banner %q, got %q", MsgLoadPatients, st.Error)
	}
	if len(st.Patients) != 7 {
		t.Errorf("a failed reload keeps the previous patients, got %d", len(st.Patients))
	}

	flaky.fail = false
	if err := c.LoadPatients(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c.State().Error != "" {
		t.Error("a successful load clears the banner")
	}
}

func TestController_CreateCarePlanSnapshot(t *testing.T) {
	env := newEnv(t)
	_, c := env.open(t)
	before := c.State().Patients["patient1"].CarePlanSnapshots["snapshot1"]

	snap, err := c.CreateCarePlanSnapshot(context.Background(), "patient1", "snapshot1", []string{"Increase statin dosage"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ID == "snapshot1" || snap.ID == "snapshot2" || snap.RequiresRevision {
		t.Errorf("unexpected new snapshot %+v", snap)
	}
	if !strings.Contains(snap.TextBlock, "Atorvastatin, 40 mg") {
		t.Error("expected the reviewed text to be saved")
	}

	st := c.State()
	p := st.Patients["patient1"]
	if len(p.CarePlanSnapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(p.CarePlanSnapshots))
	}
	after := p.CarePlanSnapshots["snapshot1"]
	if after.TextBlock != before.TextBlock || !after.RequiresRevision {
		t.Error("the source snapshot must not change")
	}
	if st.Analytics.ActiveCarePlans != 8 {
		t.Errorf("expected analytics refreshed to 8 active plans, got %d", st.Analytics.ActiveCarePlans)
	}
}

func TestController_CreateCarePlanSnapshotUnknown(t *testing.T) {
	env := newEnv(t)
	_, c := env.open(t)

	_, err := c.CreateCarePlanSnapshot(context.Background(), "patient1", "snapshot9", nil)
	if !errors.Is(err, careplan.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if c.State().Error != MsgSaveCarePlan {
		t.Errorf("expected banner %q, got %q", MsgSaveCarePlan, c.State().Error)
	}
}

func TestController_CreateReplacesPreviousSession(t *testing.T) {
	env := newEnv(t)
	c := NewController(env.deps, zerolog.Nop())
	ctx := context.Background()

	first, err := c.CreateSession(ctx, "admin@example.com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.CreateSession(ctx, "admin@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("expected a new session id")
	}
	if ok, _ := env.sessions.Exists(ctx, first); ok {
		t.Error("expected the previous session to be destroyed")
	}
	if env.store.SessionCount() != 1 {
		t.Errorf("expected one session, got %d", env.store.SessionCount())
	}
}

func TestRegistry_AttachesExistingSession(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	sid, err := env.sessions.CreateSession(ctx, "admin@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.deps.Seeder.Populate(ctx, sid); err != nil {
		t.Fatal(err)
	}

	c, err := env.registry.Get(ctx, sid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.State().Patients) != 7 {
		t.Errorf("expected the attached session to be loaded, got %d patients", len(c.State().Patients))
	}
	again, _ := env.registry.Get(ctx, sid)
	if again != c {
		t.Error("expected the same controller on the second lookup")
	}
}

func TestRegistry_UnknownSession(t *testing.T) {
	env := newEnv(t)
	if _, err := env.registry.Get(context.Background(), "missing"); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
	if _, err := env.registry.Get(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for empty id, got %v", err)
	}
}

func TestRegistry_CloseIsIdempotent(t *testing.T) {
	env := newEnv(t)
	sid, _ := env.open(t)
	ctx := context.Background()

	if err := env.registry.Close(ctx, sid); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := env.registry.Close(ctx, sid); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if env.registry.Len() != 0 || env.store.SessionCount() != 0 {
		t.Error("expected controller and session to be gone")
	}
}

func TestRegistry_ShutdownKeepsSessions(t *testing.T) {
	env := newEnv(t)
	sid, _ := env.open(t)

	env.registry.Shutdown()
	if env.registry.Len() != 0 {
		t.Error("expected no controllers after shutdown")
	}
	if n := env.hub.ListenerCount(realtime.SessionTopic(sid)); n != 0 {
		t.Errorf("expected listeners released, got %d", n)
	}
	if env.store.SessionCount() != 1 {
		t.Error("shutdown must not delete sessions")
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.setPatients(map[string]*patient.Patient{"p1": {ID: "p1", Name: "A", Conditions: []string{"x"}}})
	s.putActions("p1", map[string]*action.Action{"a1": {ID: "a1", Status: action.StatusActive}})

	st := s.Snapshot()
	st.Patients["p1"].Conditions[0] = "changed"
	st.Patients["p1"].Actions["a1"].Status = action.StatusFailed

	again := s.Snapshot()
	if again.Patients["p1"].Conditions[0] != "x" || again.Patients["p1"].Actions["a1"].Status != action.StatusActive {
		t.Error("mutating a snapshot must not change the store")
	}
	if ids := again.PatientIDs(); len(ids) != 1 || ids[0] != "p1" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestStore_PutPatientIgnoresNil(t *testing.T) {
	s := NewStore()
	s.setPatients(map[string]*patient.Patient{"p1": {ID: "p1"}})
	s.putPatient("p1", nil)
	if _, ok := s.Snapshot().Patients["p1"]; !ok {
		t.Error("a nil delivery must not drop the patient")
	}
}

func TestSubscriptions_DisposeAll(t *testing.T) {
	var subs subscriptions
	calls := 0
	subs.Add(func() { calls++ })
	subs.Add(func() { calls++ })
	subs.DisposeAll()
	subs.DisposeAll()
	if calls != 2 || subs.Len() != 0 {
		t.Errorf("expected each handle released once, got %d calls", calls)
	}
}
