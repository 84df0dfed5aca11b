package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labtrack/labtrack/internal/platform/refcache"
)

// cachedTemplateRepo fronts a TemplateRepository with a TTL cache.
// Reference data only; lifecycle state is never cached.
type cachedTemplateRepo struct {
	inner TemplateRepository
	cache *refcache.Cache
}

// NewCachedTemplateRepo wraps repo with a per-key TTL cache that
// deduplicates concurrent fetches for the same template.
func NewCachedTemplateRepo(repo TemplateRepository, ttl time.Duration) TemplateRepository {
	return &cachedTemplateRepo{inner: repo, cache: refcache.New(ttl)}
}

func (r *cachedTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	v, err := r.cache.Get(ctx, "template:"+id.String(), func(ctx context.Context) (interface{}, error) {
		return r.inner.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

type templatePage struct {
	items []*Template
	total int
}

func (r *cachedTemplateRepo) List(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	key := fmt.Sprintf("templates:%d:%d", limit, offset)
	v, err := r.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		items, total, err := r.inner.List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return templatePage{items: items, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	page := v.(templatePage)
	return page.items, page.total, nil
}

// cachedAntibioticRepo fronts an AntibioticRepository with a TTL cache.
type cachedAntibioticRepo struct {
	inner AntibioticRepository
	cache *refcache.Cache
}

func NewCachedAntibioticRepo(repo AntibioticRepository, ttl time.Duration) AntibioticRepository {
	return &cachedAntibioticRepo{inner: repo, cache: refcache.New(ttl)}
}

func (r *cachedAntibioticRepo) GetByID(ctx context.Context, id uuid.UUID) (*Antibiotic, error) {
	v, err := r.cache.Get(ctx, "antibiotic:"+id.String(), func(ctx context.Context) (interface{}, error) {
		return r.inner.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Antibiotic), nil
}

func (r *cachedAntibioticRepo) List(ctx context.Context) ([]*Antibiotic, error) {
	v, err := r.cache.Get(ctx, "antibiotics", func(ctx context.Context) (interface{}, error) {
		return r.inner.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Antibiotic), nil
}
