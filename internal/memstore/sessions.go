package memstore

import (
	"context"
	"fmt"

	"github.com/primcare/dashboard/internal/domain/session"
	"github.com/primcare/dashboard/internal/platform/realtime"
)

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, sess *session.Session) error {
	return r.s.write(func() ([]string, error) {
		if _, ok := r.s.sessions[sess.ID]; ok {
			return nil, fmt.Errorf("session %s already exists", sess.ID)
		}
		r.s.sessions[sess.ID] = &sessionDoc{session: *sess, patients: make(map[string]*patientDoc)}
		return []string{realtime.SessionTopic(sess.ID)}, nil
	})
}

func (r sessionRepo) Get(_ context.Context, id string) (*session.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sd, ok := r.s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := sd.session
	return &cp, nil
}

func (r sessionRepo) Delete(_ context.Context, id string) error {
	return r.s.write(func() ([]string, error) {
		sd, ok := r.s.sessions[id]
		if !ok {
			return nil, nil
		}
		delete(r.s.sessions, id)
		return cascadeTopics(sd), nil
	})
}

func (r sessionRepo) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.sessions[id]
	return ok, nil
}
