package stock

import (
	"context"
)

// PackResolver derives bottles-per-carton from a size label.
type PackResolver interface {
	UnitsPerCarton(label string) (int, bool)
}

// ReadPort abstracts the read-side queries.
type ReadPort interface {
	ListLevels(ctx context.Context) ([]LevelView, error)
}

// Service serves the live stock view.
type Service struct {
	repo  ReadPort
	packs PackResolver
}

// NewService builds Service.
func NewService(repo ReadPort, packs PackResolver) *Service {
	return &Service{repo: repo, packs: packs}
}

// Levels lists on-hand cartons for every size, deriving bottle counts where
// the packing table knows the label.
func (s *Service) Levels(ctx context.Context) ([]LevelView, error) {
	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range levels {
		if upc, ok := s.packs.UnitsPerCarton(levels[i].Label); ok {
			bottles := levels[i].CartonsOnHand * upc
			levels[i].UnitsPerCarton = &upc
			levels[i].BottlesOnHand = &bottles
		}
	}
	return levels, nil
}
