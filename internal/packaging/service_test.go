package packaging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquatrack/aquatrack/internal/catalog"
	"github.com/aquatrack/aquatrack/internal/shared"
	"github.com/aquatrack/aquatrack/internal/stock"
)

type fakeStockStore struct {
	balances map[int64]stock.Balance
}

func (f *fakeStockStore) GetBalanceForUpdate(_ context.Context, id int64) (stock.Balance, error) {
	b, ok := f.balances[id]
	if !ok {
		return stock.Balance{BottleSizeID: id}, stock.ErrBalanceNotFound
	}
	return b, nil
}

func (f *fakeStockStore) UpsertBalance(_ context.Context, b stock.Balance) error {
	f.balances[b.BottleSizeID] = b
	return nil
}

type fakeStore struct {
	entries map[int64]Entry
	stock   *fakeStockStore
	nextID  int64
	sizes   map[int64]catalog.View
}

func newFakeStore(sizes map[int64]catalog.View) *fakeStore {
	return &fakeStore{
		entries: make(map[int64]Entry),
		stock:   &fakeStockStore{balances: make(map[int64]stock.Balance)},
		sizes:   sizes,
	}
}

// WithTx snapshots state and restores it when fn fails, mirroring a rollback.
func (f *fakeStore) WithTx(_ context.Context, fn func(tx TxStore) error) error {
	entries := make(map[int64]Entry, len(f.entries))
	for k, v := range f.entries {
		entries[k] = v
	}
	balances := make(map[int64]stock.Balance, len(f.stock.balances))
	for k, v := range f.stock.balances {
		balances[k] = v
	}
	if err := fn(f); err != nil {
		f.entries = entries
		f.stock.balances = balances
		return err
	}
	return nil
}

func (f *fakeStore) Stock() stock.TxStore { return f.stock }

func (f *fakeStore) GetEntryForUpdate(_ context.Context, id int64) (Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("packaging: entry %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (f *fakeStore) InsertEntry(_ context.Context, entry *Entry) error {
	f.nextID++
	entry.ID = f.nextID
	f.entries[entry.ID] = *entry
	return nil
}

func (f *fakeStore) UpdateEntry(_ context.Context, entry Entry) error {
	if _, ok := f.entries[entry.ID]; !ok {
		return fmt.Errorf("packaging: entry %d: %w", entry.ID, shared.ErrNotFound)
	}
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakeStore) SetEntryDeleted(_ context.Context, id int64, deleted bool) error {
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("packaging: entry %d: %w", id, shared.ErrNotFound)
	}
	e.IsDeleted = deleted
	f.entries[id] = e
	return nil
}

func (f *fakeStore) GetEntry(_ context.Context, id int64, includeDeleted bool) (View, error) {
	e, ok := f.entries[id]
	if !ok || (!includeDeleted && e.IsDeleted) {
		return View{}, fmt.Errorf("packaging: entry %d: %w", id, shared.ErrNotFound)
	}
	return f.view(e), nil
}

func (f *fakeStore) ListEntries(_ context.Context, filter Filter, _, _ int) ([]View, int, error) {
	var views []View
	for _, e := range f.entries {
		if !filter.IncludeDeleted && e.IsDeleted {
			continue
		}
		views = append(views, f.view(e))
	}
	return views, len(views), nil
}

func (f *fakeStore) view(e Entry) View {
	v := View{
		ID:           e.ID,
		Date:         e.Date.Format("2006-01-02"),
		BottleSizeID: e.BottleSizeID,
		Cartons:      e.QuantityCartons,
		AddedBy:      e.AddedBy,
		IsDeleted:    e.IsDeleted,
	}
	if size, ok := f.sizes[e.BottleSizeID]; ok {
		v.BottleSizeLabel = size.Label
	}
	return v
}

type fakeCatalog struct {
	sizes map[int64]catalog.View
	packs catalog.PackSizes
}

func (f *fakeCatalog) Get(_ context.Context, id int64) (catalog.View, error) {
	size, ok := f.sizes[id]
	if !ok {
		return catalog.View{}, fmt.Errorf("catalog: bottle size %d: %w", id, shared.ErrNotFound)
	}
	return size, nil
}

func (f *fakeCatalog) UnitsPerCarton(label string) (int, bool) {
	return f.packs.UnitsPerCarton(label)
}

func newTestService(t *testing.T) (*Service, *fakeStore, *shared.Clock) {
	t.Helper()
	sizes := map[int64]catalog.View{
		1: {ID: 1, Label: "500ml", SellingPrice: 300},
		2: {ID: 2, Label: "1.5L", SellingPrice: 450},
	}
	store := newFakeStore(sizes)
	loc, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	clock := shared.NewClockAt(loc, time.Date(2025, 3, 10, 9, 0, 0, 0, loc))
	svc := NewService(store, stock.NewLedger(clock), &fakeCatalog{sizes: sizes, packs: catalog.DefaultPackSizes()}, clock)
	return svc, store, clock
}

func TestCreateCreditsStockAndDefaultsDate(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 10})
	require.NoError(t, err)
	require.Equal(t, clock.Today().Format("2006-01-02"), view.Date)
	require.Equal(t, 10, view.Cartons)
	require.NotNil(t, view.Bottles)
	require.Equal(t, 240, *view.Bottles)
	require.Equal(t, 10, store.stock.balances[1].QuantityAvailable)
}

func TestCreateNormalizesExplicitDate(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	// a local-midnight date must land on the same row as the UTC form,
	// so both renderings of March 10th share one stored day
	local := time.Date(2025, 3, 10, 0, 0, 0, 0, clock.Location())
	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 2, Date: &local})
	require.NoError(t, err)
	require.Equal(t, "2025-03-10", view.Date)
	require.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), store.entries[view.ID].Date)
}

func TestCreateUnknownSize(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	_, err := svc.Create(ctx, CreateInput{BottleSizeID: 99, Cartons: 5})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.entries)
}

func TestCreateStampsActor(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := shared.ContextWithActor(context.Background(), &shared.Actor{ID: 7, Name: "Jane"})

	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 3})
	require.NoError(t, err)
	require.NotNil(t, view.AddedBy)
	require.Equal(t, int64(7), *view.AddedBy)
	require.Equal(t, int64(7), *store.entries[view.ID].AddedBy)
}

func TestUpdateAdjustsByDelta(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 10})
	require.NoError(t, err)

	cartons := 4
	_, err = svc.Update(ctx, view.ID, UpdateInput{Cartons: &cartons})
	require.NoError(t, err)
	require.Equal(t, 4, store.stock.balances[1].QuantityAvailable)
}

func TestUpdateSizeChangeMovesFullQuantity(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 10})
	require.NoError(t, err)

	newSize := int64(2)
	_, err = svc.Update(ctx, view.ID, UpdateInput{BottleSizeID: &newSize})
	require.NoError(t, err)
	require.Equal(t, 0, store.stock.balances[1].QuantityAvailable)
	require.Equal(t, 10, store.stock.balances[2].QuantityAvailable)
}

func TestUpdateBlockedWhenStockConsumed(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 5})
	require.NoError(t, err)

	ledger := stock.NewLedger(clock)
	_, err = ledger.Adjust(ctx, store.stock, 1, -3)
	require.NoError(t, err)

	cartons := 0
	_, err = svc.Update(ctx, view.ID, UpdateInput{Cartons: &cartons})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 5, store.entries[view.ID].QuantityCartons)
	require.Equal(t, 2, store.stock.balances[1].QuantityAvailable)
}

func TestDeleteDebitsStockAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 6})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, view.ID))
	require.Equal(t, 0, store.stock.balances[1].QuantityAvailable)
	require.True(t, store.entries[view.ID].IsDeleted)

	require.NoError(t, svc.Delete(ctx, view.ID))
	require.Equal(t, 0, store.stock.balances[1].QuantityAvailable)
}

func TestRestoreCreditsStockBack(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	view, err := svc.Create(ctx, CreateInput{BottleSizeID: 1, Cartons: 6})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, view.ID))

	restored, err := svc.Restore(ctx, view.ID)
	require.NoError(t, err)
	require.False(t, restored.IsDeleted)
	require.Equal(t, 6, store.stock.balances[1].QuantityAvailable)

	_, err = svc.Restore(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, 6, store.stock.balances[1].QuantityAvailable)
}
