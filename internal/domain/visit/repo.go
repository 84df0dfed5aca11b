package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	List(ctx context.Context, limit, offset int) ([]*Visit, int, error)
}
