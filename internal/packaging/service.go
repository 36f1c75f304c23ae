package packaging

import (
	"context"
	"fmt"
	"time"

	"github.com/aquatrack/aquatrack/internal/catalog"
	"github.com/aquatrack/aquatrack/internal/shared"
	"github.com/aquatrack/aquatrack/internal/stock"
)

// CatalogPort is the slice of the catalog the recorder needs.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.View, error)
	UnitsPerCarton(label string) (int, bool)
}

// Service records production entries and keeps stock balances in step with
// them. Every mutation runs its entry write and its stock adjustment in one
// transaction.
type Service struct {
	store   Store
	ledger  *stock.Ledger
	catalog CatalogPort
	clock   *shared.Clock
}

// NewService builds Service.
func NewService(store Store, ledger *stock.Ledger, catalogPort CatalogPort, clock *shared.Clock) *Service {
	return &Service{store: store, ledger: ledger, catalog: catalogPort, clock: clock}
}

// CreateInput is the payload for recording a production run.
type CreateInput struct {
	BottleSizeID int64
	Cartons      int
	Date         *time.Time
}

// Create inserts an entry and credits stock by its carton count.
func (s *Service) Create(ctx context.Context, input CreateInput) (View, error) {
	if input.Cartons < 0 {
		return View{}, fmt.Errorf("packaging: cartons must be non-negative: %w", shared.ErrValidation)
	}
	size, err := s.catalog.Get(ctx, input.BottleSizeID)
	if err != nil {
		return View{}, err
	}

	// Dates are stored date-only, as UTC midnight of the business-calendar
	// day, so explicit and defaulted dates land in the same day window.
	date := shared.DateOnly(s.clock.Today())
	if input.Date != nil {
		date = shared.DateOnly(*input.Date)
	}
	entry := Entry{
		Date:            date,
		BottleSizeID:    size.ID,
		QuantityCartons: input.Cartons,
	}
	if actor := shared.ActorFromContext(ctx); actor != nil {
		entry.AddedBy = &actor.ID
	}

	err = s.store.WithTx(ctx, func(tx TxStore) error {
		if err := tx.InsertEntry(ctx, &entry); err != nil {
			return err
		}
		_, err := s.ledger.Adjust(ctx, tx.Stock(), entry.BottleSizeID, entry.QuantityCartons)
		return err
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, entry.ID, false)
}

// UpdateInput carries partial changes to an entry.
type UpdateInput struct {
	BottleSizeID *int64
	Cartons      *int
	Date         *time.Time
}

// Update changes size, cartons or date. Stock moves by the net effect: a size
// change reverses the old credit in full and applies the new one.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (View, error) {
	if input.Cartons != nil && *input.Cartons < 0 {
		return View{}, fmt.Errorf("packaging: cartons must be non-negative: %w", shared.ErrValidation)
	}
	if input.BottleSizeID != nil {
		if _, err := s.catalog.Get(ctx, *input.BottleSizeID); err != nil {
			return View{}, err
		}
	}

	err := s.store.WithTx(ctx, func(tx TxStore) error {
		entry, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if entry.IsDeleted {
			return fmt.Errorf("packaging: entry %d: %w", id, shared.ErrNotFound)
		}

		oldSize, oldCartons := entry.BottleSizeID, entry.QuantityCartons
		if input.BottleSizeID != nil {
			entry.BottleSizeID = *input.BottleSizeID
		}
		if input.Cartons != nil {
			entry.QuantityCartons = *input.Cartons
		}
		if input.Date != nil {
			entry.Date = shared.DateOnly(*input.Date)
		}

		switch {
		case entry.BottleSizeID != oldSize:
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), oldSize, -oldCartons); err != nil {
				return err
			}
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), entry.BottleSizeID, entry.QuantityCartons); err != nil {
				return err
			}
		case entry.QuantityCartons != oldCartons:
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), entry.BottleSizeID, entry.QuantityCartons-oldCartons); err != nil {
				return err
			}
		}
		return tx.UpdateEntry(ctx, entry)
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, id, false)
}

// Delete soft-deletes an entry and debits stock by its cartons. Deleting an
// already deleted entry is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx TxStore) error {
		entry, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if entry.IsDeleted {
			return nil
		}
		if _, err := s.ledger.Adjust(ctx, tx.Stock(), entry.BottleSizeID, -entry.QuantityCartons); err != nil {
			return err
		}
		return tx.SetEntryDeleted(ctx, id, true)
	})
}

// Restore reverses a soft delete, crediting stock back. Restoring an active
// entry is a no-op.
func (s *Service) Restore(ctx context.Context, id int64) (View, error) {
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		entry, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !entry.IsDeleted {
			return nil
		}
		if _, err := s.ledger.Adjust(ctx, tx.Stock(), entry.BottleSizeID, entry.QuantityCartons); err != nil {
			return err
		}
		return tx.SetEntryDeleted(ctx, id, false)
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, id, false)
}

// Get fetches one entry with derived bottle counts.
func (s *Service) Get(ctx context.Context, id int64, includeDeleted bool) (View, error) {
	view, err := s.store.GetEntry(ctx, id, includeDeleted)
	if err != nil {
		return View{}, err
	}
	s.derive(&view)
	return view, nil
}

// List returns a filtered page of entries. Date bounds are calendar days,
// widened to the half-open date-only window covering them.
func (s *Service) List(ctx context.Context, filter Filter, page, perPage int) ([]View, shared.Pagination, error) {
	filter.DateFrom, filter.DateTo = shared.DateWindow(filter.DateFrom, filter.DateTo)
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	views, total, err := s.store.ListEntries(ctx, filter, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	for i := range views {
		s.derive(&views[i])
	}
	return views, shared.NewPagination(page, perPage, total), nil
}

func (s *Service) derive(v *View) {
	if upc, ok := s.catalog.UnitsPerCarton(v.BottleSizeLabel); ok {
		bottles := v.Cartons * upc
		v.UnitsPerCarton = &upc
		v.Bottles = &bottles
	}
}
