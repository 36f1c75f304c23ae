package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/aquatrack/aquatrack/internal/shared"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (BottleSize, error)
	List(ctx context.Context) ([]BottleSize, error)
	Create(ctx context.Context, bs BottleSize) (int64, error)
	Update(ctx context.Context, bs BottleSize) error
	InUse(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// Service manages the bottle-size catalog.
type Service struct {
	repo  RepositoryPort
	packs PackSizes
}

// NewService builds Service.
func NewService(repo RepositoryPort, packs PackSizes) *Service {
	if packs == nil {
		packs = DefaultPackSizes()
	}
	return &Service{repo: repo, packs: packs}
}

// CreateInput carries fields for creating a bottle size.
type CreateInput struct {
	Label           string
	SellingPrice    float64
	CostPriceCarton float64
}

// Create validates and inserts a new bottle size.
func (s *Service) Create(ctx context.Context, input CreateInput) (View, error) {
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return View{}, fmt.Errorf("catalog: label is required: %w", shared.ErrValidation)
	}
	if input.SellingPrice < 0 {
		return View{}, fmt.Errorf("catalog: selling_price must be >= 0: %w", shared.ErrValidation)
	}
	if input.CostPriceCarton < 0 {
		return View{}, fmt.Errorf("catalog: cost_price_carton must be >= 0: %w", shared.ErrValidation)
	}
	bs := BottleSize{Label: label, SellingPrice: input.SellingPrice, CostPriceCarton: input.CostPriceCarton}
	id, err := s.repo.Create(ctx, bs)
	if err != nil {
		return View{}, err
	}
	bs.ID = id
	return s.view(bs), nil
}

// UpdateInput carries optional fields for a partial update.
type UpdateInput struct {
	Label           *string
	SellingPrice    *float64
	CostPriceCarton *float64
}

// Update applies a partial update to an existing size.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (View, error) {
	bs, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if input.Label != nil {
		label := strings.TrimSpace(*input.Label)
		if label == "" {
			return View{}, fmt.Errorf("catalog: label cannot be empty: %w", shared.ErrValidation)
		}
		bs.Label = label
	}
	if input.SellingPrice != nil {
		if *input.SellingPrice < 0 {
			return View{}, fmt.Errorf("catalog: selling_price must be >= 0: %w", shared.ErrValidation)
		}
		bs.SellingPrice = *input.SellingPrice
	}
	if input.CostPriceCarton != nil {
		if *input.CostPriceCarton < 0 {
			return View{}, fmt.Errorf("catalog: cost_price_carton must be >= 0: %w", shared.ErrValidation)
		}
		bs.CostPriceCarton = *input.CostPriceCarton
	}
	if err := s.repo.Update(ctx, bs); err != nil {
		return View{}, err
	}
	return s.view(bs), nil
}

// Get returns one bottle size.
func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	bs, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(bs), nil
}

// List returns the whole catalog ordered by label.
func (s *Service) List(ctx context.Context) ([]View, error) {
	sizes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(sizes))
	for _, bs := range sizes {
		views = append(views, s.view(bs))
	}
	return views, nil
}

// Delete removes a size unless active packaging entries still reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	inUse, err := s.repo.InUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("catalog: size is referenced by active packaging entries: %w", shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}

// UnitsPerCarton resolves the packing table for a label.
func (s *Service) UnitsPerCarton(label string) (int, bool) {
	return s.packs.UnitsPerCarton(label)
}

func (s *Service) view(bs BottleSize) View {
	v := View{
		ID:              bs.ID,
		Label:           bs.Label,
		SellingPrice:    bs.SellingPrice,
		CostPriceCarton: bs.CostPriceCarton,
	}
	if n, ok := s.packs.UnitsPerCarton(bs.Label); ok {
		v.UnitsPerCarton = &n
	}
	return v
}
