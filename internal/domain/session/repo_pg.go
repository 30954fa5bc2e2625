package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/primcare/dashboard/internal/platform/db"
)

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &sessionRepoPG{pool: pool}
}

func (r *sessionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO sessions (id, user_id, date_created) VALUES ($1, $2, $3)`,
		s.ID, s.UserID, s.DateCreated)
	return err
}

func (r *sessionRepoPG) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, user_id, date_created FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.UserID, &s.DateCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete relies on ON DELETE CASCADE to drop the session's documents.
func (r *sessionRepoPG) Delete(ctx context.Context, id string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionRepoPG) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
