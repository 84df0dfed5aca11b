package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labtrack/labtrack/internal/platform/db"
)

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepoPG{pool: pool}
}

func (r *templateRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const tmplCols = `id, code, name, report_type, sample_type, category, price,
	parameters, default_antibiotic_ids, active, created_at, updated_at`

func (r *templateRepoPG) scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var params []byte
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.ReportType, &t.SampleType, &t.Category, &t.Price,
		&params, &t.DefaultAntibioticIDs, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &t.Parameters); err != nil {
			return nil, fmt.Errorf("decode template parameters: %w", err)
		}
	}
	return &t, nil
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return r.scanTemplate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tmplCols+` FROM test_template WHERE id = $1`, id))
}

func (r *templateRepoPG) List(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM test_template WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+tmplCols+` FROM test_template WHERE active ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

type antibioticRepoPG struct{ pool *pgxpool.Pool }

func NewAntibioticRepoPG(pool *pgxpool.Pool) AntibioticRepository {
	return &antibioticRepoPG{pool: pool}
}

func (r *antibioticRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const abxCols = `id, name, class, active, created_at`

func (r *antibioticRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Antibiotic, error) {
	var a Antibiotic
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+abxCols+` FROM antibiotic WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Class, &a.Active, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *antibioticRepoPG) List(ctx context.Context) ([]*Antibiotic, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+abxCols+` FROM antibiotic WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Antibiotic
	for rows.Next() {
		var a Antibiotic
		if err := rows.Scan(&a.ID, &a.Name, &a.Class, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
