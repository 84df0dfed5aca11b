package audit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*Entry, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error)
}
