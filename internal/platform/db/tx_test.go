package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubQuerier struct{}

func (stubQuerier) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, nil
}
func (stubQuerier) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }
func (stubQuerier) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func TestConnContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := ConnFromContext(ctx); got != nil {
		t.Fatalf("expected nil querier on bare context, got %v", got)
	}

	q := stubQuerier{}
	ctx = WithConn(ctx, q)
	if got := ConnFromContext(ctx); got != q {
		t.Fatalf("expected the attached querier back, got %v", got)
	}
}
