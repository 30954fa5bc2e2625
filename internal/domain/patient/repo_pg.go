package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/platform/db"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const (
	patientCols  = `id, name, conditions, hcpcs_code`
	timelineCols = `patient_id, id, type, timestamp, description`
	snapshotCols = `patient_id, id, created_at, text_block, requires_revision, flags, suggestions`
)

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	p := Patient{
		Timeline:          make(map[string]*TimelineEvent),
		CarePlanSnapshots: make(map[string]*careplan.Snapshot),
	}
	if err := row.Scan(&p.ID, &p.Name, &p.Conditions, &p.HCPCSCode); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSnapshot(row pgx.Row) (string, *careplan.Snapshot, error) {
	var pid string
	var s careplan.Snapshot
	err := row.Scan(&pid, &s.ID, &s.CreatedAt, &s.TextBlock, &s.RequiresRevision, &s.Flags, &s.Suggestions)
	return pid, &s, err
}

func (r *patientRepoPG) List(ctx context.Context, sessionID string) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Patient
	byID := make(map[string]*Patient)
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := r.attachChildren(ctx, sessionID, byID, `session_id = $1`, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *patientRepoPG) Get(ctx context.Context, sessionID, patientID string) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE session_id = $1 AND id = $2`, sessionID, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	err = r.attachChildren(ctx, sessionID, map[string]*Patient{p.ID: p},
		`session_id = $1 AND patient_id = $2`, sessionID, patientID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// attachChildren loads the timeline and snapshot rows matching where into the
// patients they belong to.
func (r *patientRepoPG) attachChildren(ctx context.Context, sessionID string, byID map[string]*Patient, where string, args ...interface{}) error {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+timelineCols+` FROM timeline_events WHERE `+where, args...)
	if err != nil {
		return fmt.Errorf("query timeline: %w", err)
	}
	for rows.Next() {
		var pid string
		var e TimelineEvent
		if err := rows.Scan(&pid, &e.ID, &e.Type, &e.Timestamp, &e.Description); err != nil {
			rows.Close()
			return err
		}
		if p := byID[pid]; p != nil {
			p.Timeline[e.ID] = &e
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx, `SELECT `+snapshotCols+` FROM care_plan_snapshots WHERE `+where, args...)
	if err != nil {
		return fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		pid, s, err := scanSnapshot(rows)
		if err != nil {
			return err
		}
		if p := byID[pid]; p != nil {
			p.CarePlanSnapshots[s.ID] = s
		}
	}
	return rows.Err()
}

// Create writes the patient document with its timeline and snapshots in one
// transaction.
func (r *patientRepoPG) Create(ctx context.Context, sessionID string, p *Patient) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO patients (session_id, id, name, conditions, hcpcs_code)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (session_id, id) DO UPDATE SET
				name = EXCLUDED.name, conditions = EXCLUDED.conditions, hcpcs_code = EXCLUDED.hcpcs_code`,
			sessionID, p.ID, p.Name, nonNil(p.Conditions), p.HCPCSCode)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		for _, e := range p.Timeline {
			if err := r.AddTimelineEvent(ctx, sessionID, p.ID, e); err != nil {
				return err
			}
		}
		for _, s := range p.CarePlanSnapshots {
			if err := r.CreateSnapshot(ctx, sessionID, p.ID, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *patientRepoPG) AddTimelineEvent(ctx context.Context, sessionID, patientID string, e *TimelineEvent) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO timeline_events (session_id, patient_id, id, type, timestamp, description)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id, patient_id, id) DO NOTHING`,
		sessionID, patientID, e.ID, e.Type, e.Timestamp, e.Description)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (r *patientRepoPG) GetSnapshot(ctx context.Context, sessionID, patientID, snapshotID string) (*careplan.Snapshot, error) {
	_, s, err := scanSnapshot(r.conn(ctx).QueryRow(ctx, `SELECT `+snapshotCols+` FROM care_plan_snapshots
		WHERE session_id = $1 AND patient_id = $2 AND id = $3`, sessionID, patientID, snapshotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, careplan.ErrNotFound
	}
	return s, err
}

// CreateSnapshot inserts a new snapshot. Snapshots are immutable, so an id
// collision is an error rather than an overwrite.
func (r *patientRepoPG) CreateSnapshot(ctx context.Context, sessionID, patientID string, s *careplan.Snapshot) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO care_plan_snapshots (session_id, patient_id, id, created_at, text_block,
			requires_revision, flags, suggestions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sessionID, patientID, s.ID, s.CreatedAt, s.TextBlock, s.RequiresRevision,
		nonNil(s.Flags), nonNil(s.Suggestions))
	if isForeignKeyViolation(err) {
		return careplan.ErrNotFound
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
