package session

import "context"

type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Delete removes the session and everything under it. Deleting a
	// missing session is not an error.
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}
