// Package dashboard keeps the server-side view state of each dashboard
// session: the session record, its patients with their actions, the analytics
// summary, and the banner and navigation signals shown to the operator.
package dashboard

import (
	"sort"
	"sync"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/analytics"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/domain/session"
)

// Banner messages stored when an operation fails.
const (
	MsgSessionCreate = "Failed to create session"
	MsgLoadPatients  = "Failed to load patients"
	MsgLoadAnalytics = "Failed to load analytics"
	MsgSaveCarePlan  = "Failed to save care plan"
)

// State is a copy of a Store taken at one point in time.
type State struct {
	SessionID string                      `json:"session_id"`
	Session   *session.Session            `json:"session"`
	Patients  map[string]*patient.Patient `json:"patients"`
	Analytics analytics.Summary           `json:"analytics"`
	Loading   bool                        `json:"is_loading"`
	Error     string                      `json:"error,omitempty"`
	Redirect  string                      `json:"redirect,omitempty"`
}

// PatientIDs returns the patient ids of the state in sorted order.
func (s State) PatientIDs() []string {
	ids := make([]string, 0, len(s.Patients))
	for id := range s.Patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store is the state container of one dashboard session. Writes come from
// the controller and from subscription callbacks, reads from handlers.
type Store struct {
	mu        sync.RWMutex
	sessionID string
	session   *session.Session
	patients  map[string]*patient.Patient
	actions   map[string]map[string]*action.Action
	analytics analytics.Summary
	loading   int
	err       string
	redirect  string
}

func NewStore() *Store {
	return &Store{
		patients: make(map[string]*patient.Patient),
		actions:  make(map[string]map[string]*action.Action),
	}
}

func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *Store) setSessionID(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

func (s *Store) setSession(sess *session.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

// reset drops everything the session owned. The banner survives so the
// operator still sees why the session ended.
func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
	s.session = nil
	s.patients = make(map[string]*patient.Patient)
	s.actions = make(map[string]map[string]*action.Action)
	s.analytics = analytics.Summary{}
}

func (s *Store) setPatients(patients map[string]*patient.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = make(map[string]*patient.Patient, len(patients))
	for id, p := range patients {
		s.patients[id] = p.Clone()
	}
	for id := range s.actions {
		if _, ok := patients[id]; !ok {
			delete(s.actions, id)
		}
	}
}

// putPatient stores the latest copy of one patient. A nil patient is ignored:
// patients are never deleted while a session is open.
func (s *Store) putPatient(id string, p *patient.Patient) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.patients[id] = p.Clone()
	s.mu.Unlock()
}

func (s *Store) putActions(patientID string, actions map[string]*action.Action) {
	cp := make(map[string]*action.Action, len(actions))
	for id, a := range actions {
		cp[id] = a.Clone()
	}
	s.mu.Lock()
	s.actions[patientID] = cp
	s.mu.Unlock()
}

func (s *Store) setAnalytics(sum analytics.Summary) {
	s.mu.Lock()
	s.analytics = sum
	s.mu.Unlock()
}

// beginLoad clears the banner and marks an operation in flight. The returned
// func ends it.
func (s *Store) beginLoad() func() {
	s.mu.Lock()
	s.loading++
	s.err = ""
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}
}

func (s *Store) fail(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

func (s *Store) navigate(path string) {
	s.mu.Lock()
	s.redirect = path
	s.mu.Unlock()
}

// Snapshot copies the current state. Each patient carries its action set.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		SessionID: s.sessionID,
		Patients:  make(map[string]*patient.Patient, len(s.patients)),
		Analytics: s.analytics,
		Loading:   s.loading > 0,
		Error:     s.err,
		Redirect:  s.redirect,
	}
	if s.session != nil {
		sess := *s.session
		st.Session = &sess
	}
	for id, p := range s.patients {
		cp := p.Clone()
		cp.Actions = make(map[string]*action.Action, len(s.actions[id]))
		for aid, a := range s.actions[id] {
			cp.Actions[aid] = a.Clone()
		}
		st.Patients[id] = cp
	}
	return st
}
