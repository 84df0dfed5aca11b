package labtest

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrStaleWrite is returned by Repository.UpdateFromStatus when the
// compare-and-swap guard matched no row: either the record is gone or
// its status changed under the caller. The service refetches to decide
// which.
var ErrStaleWrite = errors.New("stale write: status guard matched no row")

type Repository interface {
	Create(ctx context.Context, t *VisitTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*VisitTest, error)

	// UpdateFromStatus persists t only if the stored status still equals
	// expected. This is the single serialization point for concurrent
	// transitions: a losing writer gets ErrStaleWrite, never a silent
	// overwrite.
	UpdateFromStatus(ctx context.Context, t *VisitTest, expected Status) error

	ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]*VisitTest, int, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*VisitTest, error)
}
