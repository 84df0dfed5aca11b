package labtest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labtrack/labtrack/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const vtCols = `id, visit_id, template_id, status, results,
	specimen_type, collected_by, collected_at,
	entered_by, entered_at, approved_by, approved_at, printed_at,
	rejection_count, last_rejection_at,
	cancel_reason, cancelled_by, created_at, updated_at`

func scanVisitTest(row pgx.Row) (*VisitTest, error) {
	var t VisitTest
	var results []byte
	err := row.Scan(&t.ID, &t.VisitID, &t.TemplateID, &t.Status, &results,
		&t.SpecimenType, &t.CollectedBy, &t.CollectedAt,
		&t.EnteredBy, &t.EnteredAt, &t.ApprovedBy, &t.ApprovedAt, &t.PrintedAt,
		&t.RejectionCount, &t.LastRejectionAt,
		&t.CancelReason, &t.CancelledBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		var payload ResultPayload
		if err := json.Unmarshal(results, &payload); err != nil {
			return nil, fmt.Errorf("decode result payload: %w", err)
		}
		t.Results = &payload
	}
	return &t, nil
}

func encodeResults(p *ResultPayload) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode result payload: %w", err)
	}
	return data, nil
}

func (r *repoPG) Create(ctx context.Context, t *VisitTest) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	results, err := encodeResults(t.Results)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_test (id, visit_id, template_id, status, results,
			specimen_type, collected_by, collected_at,
			entered_by, entered_at, approved_by, approved_at, printed_at,
			rejection_count, last_rejection_at, cancel_reason, cancelled_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		t.ID, t.VisitID, t.TemplateID, t.Status, results,
		t.SpecimenType, t.CollectedBy, t.CollectedAt,
		t.EnteredBy, t.EnteredAt, t.ApprovedBy, t.ApprovedAt, t.PrintedAt,
		t.RejectionCount, t.LastRejectionAt, t.CancelReason, t.CancelledBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*VisitTest, error) {
	return scanVisitTest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+vtCols+` FROM visit_test WHERE id = $1`, id))
}

func (r *repoPG) UpdateFromStatus(ctx context.Context, t *VisitTest, expected Status) error {
	results, err := encodeResults(t.Results)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit_test SET status=$3, results=$4,
			specimen_type=$5, collected_by=$6, collected_at=$7,
			entered_by=$8, entered_at=$9, approved_by=$10, approved_at=$11, printed_at=$12,
			rejection_count=$13, last_rejection_at=$14,
			cancel_reason=$15, cancelled_by=$16, updated_at=NOW()
		WHERE id = $1 AND status = $2`,
		t.ID, expected, t.Status, results,
		t.SpecimenType, t.CollectedBy, t.CollectedAt,
		t.EnteredBy, t.EnteredAt, t.ApprovedBy, t.ApprovedAt, t.PrintedAt,
		t.RejectionCount, t.LastRejectionAt,
		t.CancelReason, t.CancelledBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (r *repoPG) ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]*VisitTest, int, error) {
	vals := make([]string, len(statuses))
	for i, s := range statuses {
		vals[i] = string(s)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit_test WHERE status = ANY($1)`, vals).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+vtCols+` FROM visit_test WHERE status = ANY($1)
		ORDER BY created_at LIMIT $2 OFFSET $3`, vals, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*VisitTest
	for rows.Next() {
		t, err := scanVisitTest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*VisitTest, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+vtCols+` FROM visit_test WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VisitTest
	for rows.Next() {
		t, err := scanVisitTest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
