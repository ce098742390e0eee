package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/store"
)

type CatalogService struct {
	parts    *store.SparePartRepo
	observer UseCaseObserver
}

func NewCatalogService(database db.DBTX, observers ...UseCaseObserver) *CatalogService {
	return &CatalogService{parts: store.NewSparePartRepo(database), observer: useCaseObserverOrNoop(observers)}
}

func (s *CatalogService) List(ctx context.Context) ([]catalog.SparePart, error) {
	return s.parts.List(ctx)
}

// Catalog returns an indexed snapshot of every part.
func (s *CatalogService) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	parts, err := s.parts.List(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(parts), nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (catalog.SparePart, error) {
	return s.parts.Get(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, p catalog.SparePart) (_ catalog.SparePart, err error) {
	defer observe(ctx, s.observer, "catalog.create_part", time.Now(), &err, nil)

	p = normalizePart(p)
	if err := p.Validate(); err != nil {
		return catalog.SparePart{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p.ID = uuid.NewString()
	if err := s.parts.Create(ctx, p); err != nil {
		return catalog.SparePart{}, err
	}
	return p, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, p catalog.SparePart) (_ catalog.SparePart, err error) {
	defer observe(ctx, s.observer, "catalog.update_part", time.Now(), &err, map[string]any{"part_id": id})

	p = normalizePart(p)
	p.ID = id
	if err := p.Validate(); err != nil {
		return catalog.SparePart{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.parts.Update(ctx, p); err != nil {
		return catalog.SparePart{}, err
	}
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) (err error) {
	defer observe(ctx, s.observer, "catalog.delete_part", time.Now(), &err, map[string]any{"part_id": id})
	return s.parts.Delete(ctx, id)
}

func normalizePart(p catalog.SparePart) catalog.SparePart {
	p.PartName = strings.TrimSpace(p.PartName)
	p.Description = strings.TrimSpace(p.Description)
	return p
}
