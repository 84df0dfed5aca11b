package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	templates   TemplateRepository
	antibiotics AntibioticRepository
}

func NewService(templates TemplateRepository, antibiotics AntibioticRepository) *Service {
	return &Service{templates: templates, antibiotics: antibiotics}
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	return s.templates.List(ctx, limit, offset)
}

func (s *Service) ListAntibiotics(ctx context.Context) ([]*Antibiotic, error) {
	return s.antibiotics.List(ctx)
}
