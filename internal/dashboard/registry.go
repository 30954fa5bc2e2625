package dashboard

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds one Controller per open session. It creates them on login
// and attaches them lazily for sessions opened by another process.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	deps        Deps
	logger      zerolog.Logger
}

func NewRegistry(deps Deps, logger zerolog.Logger) *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
		deps:        deps,
		logger:      logger,
	}
}

func (r *Registry) newController() *Controller {
	c := NewController(r.deps, r.logger)
	c.onGone = r.forget
	return c
}

// Open creates, seeds and loads a new session for userID.
func (r *Registry) Open(ctx context.Context, userID string) (string, error) {
	c := r.newController()
	sid, err := c.CreateSession(ctx, userID)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.controllers[sid] = c
	r.mu.Unlock()
	return sid, nil
}

// Get returns the controller of sessionID, attaching one if the session
// exists in the store but is not open here yet.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Controller, error) {
	r.mu.Lock()
	c, ok := r.controllers[sessionID]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	if sessionID == "" {
		return nil, ErrNoSession
	}
	exists, err := r.deps.Sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoSession
	}

	c = r.newController()
	if err := c.Attach(ctx, sessionID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.controllers[sessionID]; ok {
		go c.Dispose()
		return existing, nil
	}
	r.controllers[sessionID] = c
	return c, nil
}

// Close destroys the session and its controller. Closing an unknown session
// still deletes it from the store.
func (r *Registry) Close(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	c, ok := r.controllers[sessionID]
	delete(r.controllers, sessionID)
	r.mu.Unlock()

	if ok {
		return c.DestroySession(ctx)
	}
	return r.deps.Sessions.DestroySession(ctx, sessionID)
}

func (r *Registry) forget(sessionID string) {
	r.mu.Lock()
	delete(r.controllers, sessionID)
	r.mu.Unlock()
}

// Len is the number of open controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// Shutdown releases every controller's subscriptions. Sessions stay in the
// store.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	controllers := r.controllers
	r.controllers = make(map[string]*Controller)
	r.mu.Unlock()

	for _, c := range controllers {
		c.Dispose()
	}
	r.logger.Info().Int("controllers", len(controllers)).Msg("dashboard registry shut down")
}
