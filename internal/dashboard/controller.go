package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/analytics"
	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/domain/session"
	"github.com/primcare/dashboard/internal/platform/realtime"
)

// ErrNoSession is returned by loads when the container holds no session. The
// store then carries a redirect to the login page.
var ErrNoSession = errors.New("no session")

type SessionManager interface {
	CreateSession(ctx context.Context, userID string) (string, error)
	DestroySession(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	ObserveSession(ctx context.Context, id string, fn func(*session.Session)) (realtime.Unsubscribe, error)
}

type PatientLoader interface {
	LoadPatients(ctx context.Context, sessionID string) (map[string]*patient.Patient, error)
	ObservePatient(ctx context.Context, sessionID, patientID string, fn func(*patient.Patient)) (realtime.Unsubscribe, error)
}

type ActionLoader interface {
	ObserveActions(ctx context.Context, sessionID, patientID string, fn func(map[string]*action.Action)) (realtime.Unsubscribe, error)
}

type AnalyticsSource interface {
	Compute(ctx context.Context, sessionID string) (analytics.Summary, error)
}

type CarePlanWriter interface {
	Authorize(ctx context.Context, sessionID, patientID, snapshotID string, accepted []string) (*careplan.Snapshot, error)
}

// Seeder fills a freshly created session with data.
type Seeder interface {
	Populate(ctx context.Context, sessionID string) error
}

// Navigation builds the redirect targets of the dashboard.
type Navigation struct {
	LoginPath    string
	OverviewPath string
}

func (n Navigation) Login() string {
	if n.LoginPath == "" {
		return "/login"
	}
	return n.LoginPath
}

func (n Navigation) Overview(sessionID string) string {
	path := n.OverviewPath
	if path == "" {
		path = "/overview"
	}
	return session.OverviewURL(path, sessionID)
}

// subscriptions collects unsubscribe handles so they can be released
// together.
type subscriptions struct {
	mu   sync.Mutex
	subs []realtime.Unsubscribe
}

func (s *subscriptions) Add(u realtime.Unsubscribe) {
	s.mu.Lock()
	s.subs = append(s.subs, u)
	s.mu.Unlock()
}

func (s *subscriptions) DisposeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, u := range subs {
		u()
	}
}

func (s *subscriptions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Deps are the services a Controller drives.
type Deps struct {
	Sessions   SessionManager
	Patients   PatientLoader
	Actions    ActionLoader
	Analytics  AnalyticsSource
	CarePlans  CarePlanWriter
	Seeder     Seeder
	Navigation Navigation
}

// Controller owns one Store and is its only writer apart from the
// subscription callbacks it registers. Its entry points run one at a time.
// Callbacks only touch the Store, never the entry points, so a change
// delivered while an entry point runs cannot deadlock it.
type Controller struct {
	ops    sync.Mutex
	store  *Store
	deps   Deps
	onGone func(sessionID string)

	sessionSubs subscriptions
	patientSubs subscriptions

	logger zerolog.Logger
}

func NewController(deps Deps, logger zerolog.Logger) *Controller {
	return &Controller{
		store:  NewStore(),
		deps:   deps,
		logger: logger.With().Str("component", "dashboard").Logger(),
	}
}

// State returns a copy of the current dashboard state.
func (c *Controller) State() State { return c.store.Snapshot() }

func (c *Controller) SessionID() string { return c.store.SessionID() }

// CreateSession creates a session for userID, seeds it and loads it. Any
// session the controller held before is destroyed first.
func (c *Controller) CreateSession(ctx context.Context, userID string) (string, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	done := c.store.beginLoad()
	defer done()

	if c.store.SessionID() != "" {
		if err := c.destroyLocked(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("destroy previous session")
		}
	}

	sid, err := c.deps.Sessions.CreateSession(ctx, userID)
	if err != nil {
		c.store.fail(MsgSessionCreate)
		return "", err
	}
	log := c.logger.With().Str("session_id", sid).Logger()

	if c.deps.Seeder != nil {
		if err := c.deps.Seeder.Populate(ctx, sid); err != nil {
			log.Error().Err(err).Msg("seed session")
			c.store.fail(MsgSessionCreate)
			if derr := c.deps.Sessions.DestroySession(ctx, sid); derr != nil {
				log.Warn().Err(derr).Msg("remove half-seeded session")
			}
			return "", fmt.Errorf("%w: %v", session.ErrSessionCreate, err)
		}
	}

	if err := c.attachLocked(ctx, sid); err != nil {
		log.Error().Err(err).Msg("observe session")
		c.store.fail(MsgSessionCreate)
		return "", fmt.Errorf("%w: %v", session.ErrSessionCreate, err)
	}
	c.store.navigate(c.deps.Navigation.Overview(sid))

	// Load failures leave a banner but the session itself is usable.
	_ = c.loadPatientsLocked(ctx)
	_ = c.loadAnalyticsLocked(ctx)
	return sid, nil
}

// Attach binds the controller to an existing session and loads it.
func (c *Controller) Attach(ctx context.Context, sessionID string) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	if c.store.SessionID() == sessionID {
		return nil
	}
	c.teardownLocked()
	if err := c.attachLocked(ctx, sessionID); err != nil {
		return err
	}
	c.store.navigate(c.deps.Navigation.Overview(sessionID))
	_ = c.loadPatientsLocked(ctx)
	_ = c.loadAnalyticsLocked(ctx)
	return nil
}

func (c *Controller) attachLocked(ctx context.Context, sid string) error {
	c.store.setSessionID(sid)
	unsub, err := c.deps.Sessions.ObserveSession(ctx, sid, func(sess *session.Session) {
		if sess != nil {
			c.store.setSession(sess)
			return
		}
		// The callback runs inside the observation; tearing it down here
		// would wait on itself.
		go c.sessionGone(sid)
	})
	if err != nil {
		c.store.reset()
		return err
	}
	c.sessionSubs.Add(unsub)
	return nil
}

// sessionGone handles a session deleted behind the controller's back.
func (c *Controller) sessionGone(sid string) {
	c.ops.Lock()
	defer c.ops.Unlock()
	if c.store.SessionID() != sid {
		return
	}
	c.logger.Info().Str("session_id", sid).Msg("session no longer exists")
	c.teardownLocked()
	c.store.navigate(c.deps.Navigation.Login())
	if c.onGone != nil {
		c.onGone(sid)
	}
}

// DestroySession releases every subscription and then deletes the session.
// It is safe to call without a session.
func (c *Controller) DestroySession(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()
	return c.destroyLocked(ctx)
}

func (c *Controller) destroyLocked(ctx context.Context) error {
	sid := c.store.SessionID()
	c.teardownLocked()
	c.store.navigate(c.deps.Navigation.Login())
	if sid == "" {
		return nil
	}
	return c.deps.Sessions.DestroySession(ctx, sid)
}

// Dispose releases the subscriptions and forgets the session without
// deleting it.
func (c *Controller) Dispose() {
	c.ops.Lock()
	defer c.ops.Unlock()
	c.teardownLocked()
}

func (c *Controller) teardownLocked() {
	c.patientSubs.DisposeAll()
	c.sessionSubs.DisposeAll()
	c.store.reset()
}

// noSessionLocked reports whether sid is unusable. The container is then
// cleared and pointed at the login page.
func (c *Controller) noSessionLocked(ctx context.Context, sid string) bool {
	if sid != "" {
		ok, err := c.deps.Sessions.Exists(ctx, sid)
		if err != nil || ok {
			return false
		}
		c.teardownLocked()
	}
	c.store.navigate(c.deps.Navigation.Login())
	return true
}

// LoadPatients fetches the session's patients and keeps each one and its
// actions live until the next load or teardown.
func (c *Controller) LoadPatients(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()
	return c.loadPatientsLocked(ctx)
}

func (c *Controller) loadPatientsLocked(ctx context.Context) error {
	sid := c.store.SessionID()
	if sid == "" {
		c.noSessionLocked(ctx, sid)
		return ErrNoSession
	}
	done := c.store.beginLoad()
	defer done()

	patients, err := c.deps.Patients.LoadPatients(ctx, sid)
	if err != nil {
		if c.noSessionLocked(ctx, sid) {
			return ErrNoSession
		}
		c.logger.Error().Err(err).Str("session_id", sid).Msg("load patients")
		c.store.fail(MsgLoadPatients)
		return err
	}
	c.patientSubs.DisposeAll()
	c.store.setPatients(patients)

	ids := make([]string, 0, len(patients))
	for id := range patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		id := id
		log := c.logger.With().Str("session_id", sid).Str("patient_id", id).Logger()

		unsub, err := c.deps.Patients.ObservePatient(ctx, sid, id, func(p *patient.Patient) {
			c.store.putPatient(id, p)
		})
		if err != nil {
			log.Warn().Err(err).Msg("observe patient")
		} else {
			c.patientSubs.Add(unsub)
		}

		unsub, err = c.deps.Actions.ObserveActions(ctx, sid, id, func(actions map[string]*action.Action) {
			c.store.putActions(id, actions)
		})
		if err != nil {
			log.Warn().Err(err).Msg("observe actions")
		} else {
			c.patientSubs.Add(unsub)
		}
	}
	return nil
}

func (c *Controller) LoadAnalytics(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()
	return c.loadAnalyticsLocked(ctx)
}

func (c *Controller) loadAnalyticsLocked(ctx context.Context) error {
	sid := c.store.SessionID()
	if sid == "" {
		c.noSessionLocked(ctx, sid)
		return ErrNoSession
	}
	done := c.store.beginLoad()
	defer done()

	sum, err := c.deps.Analytics.Compute(ctx, sid)
	if err != nil {
		if c.noSessionLocked(ctx, sid) {
			return ErrNoSession
		}
		c.logger.Error().Err(err).Str("session_id", sid).Msg("load analytics")
		c.store.fail(MsgLoadAnalytics)
		return err
	}
	c.store.setAnalytics(sum)
	return nil
}

// CreateCarePlanSnapshot authorizes a reviewed note as a new snapshot of the
// patient, then refreshes patients and analytics.
func (c *Controller) CreateCarePlanSnapshot(ctx context.Context, patientID, snapshotID string, accepted []string) (*careplan.Snapshot, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	sid := c.store.SessionID()
	if sid == "" {
		c.noSessionLocked(ctx, sid)
		return nil, ErrNoSession
	}
	snap, err := c.deps.CarePlans.Authorize(ctx, sid, patientID, snapshotID, accepted)
	if err != nil {
		c.logger.Error().Err(err).Str("session_id", sid).Str("patient_id", patientID).Msg("save care plan")
		c.store.fail(MsgSaveCarePlan)
		return nil, err
	}
	_ = c.loadPatientsLocked(ctx)
	_ = c.loadAnalyticsLocked(ctx)
	return snap, nil
}
