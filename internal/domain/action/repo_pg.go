package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/primcare/dashboard/internal/platform/db"
)

type actionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &actionRepoPG{pool: pool}
}

func (r *actionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const actionCols = `id, patient_id, type, description, status, created_at, updated_at, activity_log`

func (r *actionRepoPG) scanAction(row pgx.Row) (*Action, error) {
	var a Action
	err := row.Scan(&a.ID, &a.PatientID, &a.Type, &a.Description, &a.Status,
		&a.CreatedAt, &a.UpdatedAt, &a.ActivityLog)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *actionRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Action, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Action
	for rows.Next() {
		a, err := r.scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *actionRepoPG) ListByPatient(ctx context.Context, sessionID, patientID string) ([]*Action, error) {
	return r.list(ctx, `SELECT `+actionCols+` FROM actions
		WHERE session_id = $1 AND patient_id = $2 ORDER BY created_at, id`, sessionID, patientID)
}

func (r *actionRepoPG) ListBySession(ctx context.Context, sessionID string) ([]*Action, error) {
	return r.list(ctx, `SELECT `+actionCols+` FROM actions
		WHERE session_id = $1 ORDER BY patient_id, created_at, id`, sessionID)
}

func (r *actionRepoPG) Get(ctx context.Context, sessionID, patientID, actionID string) (*Action, error) {
	return r.scanAction(r.conn(ctx).QueryRow(ctx, `SELECT `+actionCols+` FROM actions
		WHERE session_id = $1 AND patient_id = $2 AND id = $3`, sessionID, patientID, actionID))
}

func (r *actionRepoPG) Create(ctx context.Context, sessionID string, a *Action) error {
	log := a.ActivityLog
	if log == nil {
		log = []ActivityLogEntry{}
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO actions (session_id, patient_id, id, type, description, status,
			created_at, updated_at, activity_log)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (session_id, patient_id, id) DO NOTHING`,
		sessionID, a.PatientID, a.ID, a.Type, a.Description, a.Status,
		a.CreatedAt, a.UpdatedAt, log)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("patient %s does not exist in session %s: %w", a.PatientID, sessionID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", a.PatientID, a.ID, ErrExists)
	}
	return nil
}

func (r *actionRepoPG) SetStatus(ctx context.Context, sessionID, patientID, actionID, status string, entry ActivityLogEntry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE actions SET status = $4, updated_at = $5, activity_log = activity_log || $6::jsonb
		WHERE session_id = $1 AND patient_id = $2 AND id = $3`,
		sessionID, patientID, actionID, status, entry.Timestamp, []ActivityLogEntry{entry})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *actionRepoPG) AppendActivity(ctx context.Context, sessionID, patientID, actionID string, entry ActivityLogEntry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE actions SET activity_log = activity_log || $4::jsonb, updated_at = GREATEST(updated_at, $5)
		WHERE session_id = $1 AND patient_id = $2 AND id = $3`,
		sessionID, patientID, actionID, []ActivityLogEntry{entry}, entry.Timestamp)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
