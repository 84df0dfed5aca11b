package catalog

import (
	"context"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	List(ctx context.Context, limit, offset int) ([]*Template, int, error)
}

type AntibioticRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Antibiotic, error)
	List(ctx context.Context) ([]*Antibiotic, error)
}
