// Package memstore is an in-process document store for sessions, patients
// and actions. It backs the service when no database is configured and in
// tests. Every write announces the key path it changed after the store lock
// is released.
package memstore

import (
	"sort"
	"sync"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/domain/patient"
	"github.com/primcare/dashboard/internal/domain/session"
	"github.com/primcare/dashboard/internal/platform/realtime"
)

// Publisher receives the topic of every change.
type Publisher interface {
	Publish(topic string)
}

type sessionDoc struct {
	session  session.Session
	patients map[string]*patientDoc
}

type patientDoc struct {
	patient *patient.Patient
	actions map[string]*action.Action
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionDoc
	pub      Publisher
}

// New returns an empty store. pub may be nil.
func New(pub Publisher) *Store {
	return &Store{sessions: make(map[string]*sessionDoc), pub: pub}
}

func (s *Store) Sessions() session.Repository { return sessionRepo{s} }
func (s *Store) Patients() patient.Repository { return patientRepo{s} }
func (s *Store) Actions() action.Repository   { return actionRepo{s} }

// write runs fn under the write lock and publishes the topics it returns.
func (s *Store) write(fn func() ([]string, error)) error {
	s.mu.Lock()
	topics, err := fn()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.pub != nil {
		for _, t := range topics {
			s.pub.Publish(t)
		}
	}
	return nil
}

func (s *Store) patientLocked(sessionID, patientID string) *patientDoc {
	sd := s.sessions[sessionID]
	if sd == nil {
		return nil
	}
	return sd.patients[patientID]
}

// SessionCount is the number of live sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cascadeTopics lists every topic under a session, session first.
func cascadeTopics(sd *sessionDoc) []string {
	topics := []string{realtime.SessionTopic(sd.session.ID)}
	ids := make([]string, 0, len(sd.patients))
	for id := range sd.patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		topics = append(topics,
			realtime.PatientTopic(sd.session.ID, id),
			realtime.ActionsTopic(sd.session.ID, id))
	}
	return topics
}
