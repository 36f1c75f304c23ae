package sales

import (
	"context"
	"fmt"
	"sort"
	"strings"
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
	sales    map[int64]Sale
	items    map[int64][]SaleItem
	payments map[int64][]Payment
	stock    *fakeStockStore

	nextSaleID int64
	nextItemID int64
	nextPayID  int64

	// staleReceipt makes the first n LatestReceiptNumber calls report an
	// outdated value so allocation races can be exercised.
	staleReceipt int
	staleValue   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sales:    make(map[int64]Sale),
		items:    make(map[int64][]SaleItem),
		payments: make(map[int64][]Payment),
		stock:    &fakeStockStore{balances: make(map[int64]stock.Balance)},
	}
}

func (f *fakeStore) snapshot() *fakeStore {
	c := newFakeStore()
	for k, v := range f.sales {
		c.sales[k] = v
	}
	for k, v := range f.items {
		c.items[k] = append([]SaleItem(nil), v...)
	}
	for k, v := range f.payments {
		c.payments[k] = append([]Payment(nil), v...)
	}
	for k, v := range f.stock.balances {
		c.stock.balances[k] = v
	}
	c.nextSaleID, c.nextItemID, c.nextPayID = f.nextSaleID, f.nextItemID, f.nextPayID
	return c
}

func (f *fakeStore) restore(c *fakeStore) {
	f.sales, f.items, f.payments = c.sales, c.items, c.payments
	f.stock.balances = c.stock.balances
	f.nextSaleID, f.nextItemID, f.nextPayID = c.nextSaleID, c.nextItemID, c.nextPayID
}

func (f *fakeStore) WithTx(_ context.Context, fn func(tx TxStore) error) error {
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) Stock() stock.TxStore { return f.stock }

func (f *fakeStore) LatestReceiptNumber(_ context.Context, prefix string) (string, error) {
	if f.staleReceipt > 0 {
		f.staleReceipt--
		return f.staleValue, nil
	}
	latest := ""
	for _, s := range f.sales {
		if strings.HasPrefix(s.ReceiptNumber, prefix) && s.ReceiptNumber > latest {
			latest = s.ReceiptNumber
		}
	}
	return latest, nil
}

func (f *fakeStore) InsertSale(_ context.Context, sale *Sale) error {
	for _, s := range f.sales {
		if s.ReceiptNumber == sale.ReceiptNumber {
			return errReceiptTaken
		}
	}
	f.nextSaleID++
	sale.ID = f.nextSaleID
	f.sales[sale.ID] = *sale
	return nil
}

func (f *fakeStore) UpdateSaleHeader(_ context.Context, sale Sale) error {
	if _, ok := f.sales[sale.ID]; !ok {
		return fmt.Errorf("sales: sale %d: %w", sale.ID, shared.ErrNotFound)
	}
	sale.Items, sale.Payments = nil, nil
	f.sales[sale.ID] = sale
	return nil
}

func (f *fakeStore) SetSaleDeleted(_ context.Context, id int64, deleted bool) error {
	s, ok := f.sales[id]
	if !ok {
		return fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
	}
	s.IsDeleted = deleted
	f.sales[id] = s
	return nil
}

func (f *fakeStore) GetSaleForUpdate(_ context.Context, id int64) (Sale, error) {
	s, ok := f.sales[id]
	if !ok {
		return Sale{}, fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (f *fakeStore) ListItems(_ context.Context, saleID int64) ([]SaleItem, error) {
	return append([]SaleItem(nil), f.items[saleID]...), nil
}

func (f *fakeStore) InsertItem(_ context.Context, item *SaleItem) error {
	f.nextItemID++
	item.ID = f.nextItemID
	f.items[item.SaleID] = append(f.items[item.SaleID], *item)
	return nil
}

func (f *fakeStore) UpdateItem(_ context.Context, item SaleItem) error {
	list := f.items[item.SaleID]
	for i := range list {
		if list[i].ID == item.ID {
			list[i] = item
			return nil
		}
	}
	return fmt.Errorf("sales: item %d: %w", item.ID, shared.ErrNotFound)
}

func (f *fakeStore) DeleteItems(_ context.Context, saleID int64) error {
	delete(f.items, saleID)
	return nil
}

func (f *fakeStore) InsertPayment(_ context.Context, payment *Payment) error {
	f.nextPayID++
	payment.ID = f.nextPayID
	f.payments[payment.RetailSaleID] = append(f.payments[payment.RetailSaleID], *payment)
	return nil
}

func (f *fakeStore) GetSale(_ context.Context, id int64, includeDeleted bool) (Sale, error) {
	s, ok := f.sales[id]
	if !ok || (!includeDeleted && s.IsDeleted) {
		return Sale{}, fmt.Errorf("sales: sale: %w", shared.ErrNotFound)
	}
	s.Items = append([]SaleItem(nil), f.items[id]...)
	s.Payments = append([]Payment(nil), f.payments[id]...)
	return s, nil
}

func (f *fakeStore) GetSaleByReceipt(ctx context.Context, receipt string, includeDeleted bool) (Sale, error) {
	for id, s := range f.sales {
		if s.ReceiptNumber == receipt {
			return f.GetSale(ctx, id, includeDeleted)
		}
	}
	return Sale{}, fmt.Errorf("sales: sale: %w", shared.ErrNotFound)
}

func (f *fakeStore) ListSales(_ context.Context, filter Filter, _, _ int) ([]Sale, int, error) {
	var out []Sale
	for _, s := range f.sales {
		if !filter.IncludeDeleted && s.IsDeleted {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeStore) ListSalesWithItems(ctx context.Context, filter Filter) ([]Sale, error) {
	sales, _, err := f.ListSales(ctx, filter, 1, 100)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = append([]SaleItem(nil), f.items[sales[i].ID]...)
	}
	return sales, nil
}

type fakeCatalog struct {
	sizes map[int64]catalog.View
}

func (f *fakeCatalog) Get(_ context.Context, id int64) (catalog.View, error) {
	size, ok := f.sizes[id]
	if !ok {
		return catalog.View{}, fmt.Errorf("catalog: bottle size %d: %w", id, shared.ErrNotFound)
	}
	return size, nil
}

type fakeCustomers struct {
	names map[int64]string
}

func (f *fakeCustomers) Lookup(_ context.Context, id int64) (string, error) {
	name, ok := f.names[id]
	if !ok {
		return "", fmt.Errorf("customers: customer %d: %w", id, shared.ErrNotFound)
	}
	return name, nil
}

func newTestEngine(t *testing.T) (*Service, *fakeStore, *shared.Clock) {
	t.Helper()
	store := newFakeStore()
	loc, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	clock := shared.NewClockAt(loc, time.Date(2025, 3, 10, 12, 0, 0, 0, loc))
	ledger := stock.NewLedger(clock)
	cat := &fakeCatalog{sizes: map[int64]catalog.View{
		1: {ID: 1, Label: "500ml", SellingPrice: 300, CostPriceCarton: 220},
		2: {ID: 2, Label: "1.5L", SellingPrice: 450, CostPriceCarton: 300},
	}}
	cust := &fakeCustomers{names: map[int64]string{5: "Halima Stores"}}
	svc := NewService(store, ledger, cat, cust, clock)

	ctx := context.Background()
	_, err = ledger.Adjust(ctx, store.stock, 1, 20)
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, store.stock, 2, 10)
	require.NoError(t, err)
	return svc, store, clock
}

func TestCreateDebitsStockAndSnapshotsCogs(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 5}}})
	require.NoError(t, err)
	require.Equal(t, "20250310001", sale.ReceiptNumber)
	require.Equal(t, TypeNormal, sale.SaleType)
	require.Equal(t, 15, store.stock.balances[1].QuantityAvailable)
	require.InDelta(t, 1500.0, sale.TotalAmount, 1e-9)
	require.InDelta(t, 0.0, sale.PaidAmount, 1e-9)
	require.InDelta(t, 1500.0, sale.BalanceDue, 1e-9)
	require.Len(t, sale.Items, 1)
	require.InDelta(t, 220.0, sale.Items[0].CogsUnitPrice, 1e-9)
	require.InDelta(t, 1100.0, sale.Items[0].CogsTotal, 1e-9)
}

func TestCreateReceiptSequenceIncrements(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEngine(t)

	first, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 1}}})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 1}}})
	require.NoError(t, err)
	require.Equal(t, "20250310001", first.ReceiptNumber)
	require.Equal(t, "20250310002", second.ReceiptNumber)
}

func TestCreateRetriesOnReceiptCollision(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	_, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 1}}})
	require.NoError(t, err)

	// A stale read makes the next allocation collide once before succeeding.
	store.staleReceipt = 1
	store.staleValue = ""
	sale, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 1}}})
	require.NoError(t, err)
	require.Equal(t, "20250310002", sale.ReceiptNumber)
}

func TestCreateExhaustsReceiptRetries(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	_, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 1}}})
	require.NoError(t, err)

	store.staleReceipt = maxReceiptRetries
	store.staleValue = ""
	_, err = svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrReceiptAllocation)
}

func TestCreateRejectsEmptyItems(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEngine(t)

	_, err := svc.Create(ctx, CreateInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateInsufficientStockLeavesNoPartialEffects(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	_, err := svc.Create(ctx, CreateInput{Items: []ItemInput{
		{BottleSizeID: 1, Quantity: 5},
		{BottleSizeID: 2, Quantity: 11},
	}})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 20, store.stock.balances[1].QuantityAvailable)
	require.Equal(t, 10, store.stock.balances[2].QuantityAvailable)
	require.Empty(t, store.sales)
}

func TestCreateResolvesCustomerName(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEngine(t)

	cid := int64(5)
	sale, err := svc.Create(ctx, CreateInput{
		SaleType:   TypeCredit,
		CustomerID: &cid,
		Items:      []ItemInput{{BottleSizeID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.NotNil(t, sale.CustomerName)
	require.Equal(t, "Halima Stores", *sale.CustomerName)
}

func TestUpdateItemsMovesNetStockDelta(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 10}}})
	require.NoError(t, err)
	require.Equal(t, 10, store.stock.balances[1].QuantityAvailable)

	updated, err := svc.Update(ctx, sale.ID, UpdateInput{
		ReplaceItems: true,
		Items:        []ItemInput{{BottleSizeID: 1, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 16, store.stock.balances[1].QuantityAvailable)
	require.InDelta(t, 1200.0, updated.TotalAmount, 1e-9)
	require.InDelta(t, 1200.0, updated.BalanceDue, 1e-9)
}

func TestDeleteAndRestoreMoveStockSymmetrically(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 8}}})
	require.NoError(t, err)
	require.Equal(t, 12, store.stock.balances[1].QuantityAvailable)

	require.NoError(t, svc.Delete(ctx, sale.ID))
	require.Equal(t, 20, store.stock.balances[1].QuantityAvailable)

	restored, err := svc.Restore(ctx, sale.ID)
	require.NoError(t, err)
	require.False(t, restored.IsDeleted)
	require.Equal(t, 12, store.stock.balances[1].QuantityAvailable)
}

func TestRestoreBlockedWhenStockConsumed(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 8}}})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, sale.ID))

	ledger := stock.NewLedger(clock)
	_, err = ledger.Adjust(ctx, store.stock, 1, -15)
	require.NoError(t, err)

	_, err = svc.Restore(ctx, sale.ID)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.True(t, store.sales[sale.ID].IsDeleted)
	require.Equal(t, 5, store.stock.balances[1].QuantityAvailable)
}

func TestCloseDispatchReconcilesReturns(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{
		SaleType: TypeDispatch,
		Items: []ItemInput{
			{BottleSizeID: 1, Quantity: 10},
			{BottleSizeID: 2, Quantity: 5},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 10, store.stock.balances[1].QuantityAvailable)
	require.Equal(t, 5, store.stock.balances[2].QuantityAvailable)

	closed, err := svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{
		Returns: []ReturnInput{{BottleSizeID: 1, QuantityReturned: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 12, store.stock.balances[1].QuantityAvailable)
	require.Equal(t, 5, store.stock.balances[2].QuantityAvailable)

	byteSize := map[int64]SaleItem{}
	for _, it := range closed.Items {
		byteSize[it.BottleSizeID] = it
	}
	require.Equal(t, 8, byteSize[1].Quantity)
	require.Equal(t, 5, byteSize[2].Quantity)
	require.InDelta(t, 8*300+5*450, closed.TotalAmount, 1e-9)
	require.InDelta(t, closed.TotalAmount, closed.BalanceDue, 1e-9)
}

func TestCloseDispatchFullReturn(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{
		SaleType: TypeDispatch,
		Items:    []ItemInput{{BottleSizeID: 1, Quantity: 6}},
	})
	require.NoError(t, err)
	require.Equal(t, 14, store.stock.balances[1].QuantityAvailable)

	closed, err := svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{
		Returns: []ReturnInput{{BottleSizeID: 1, QuantityReturned: 6}},
	})
	require.NoError(t, err)
	require.Equal(t, 20, store.stock.balances[1].QuantityAvailable)
	require.Len(t, closed.Items, 1)
	require.Equal(t, 0, closed.Items[0].Quantity)
	require.InDelta(t, 0.0, closed.Items[0].TotalPrice, 1e-9)
	require.InDelta(t, 0.0, closed.TotalAmount, 1e-9)
	require.InDelta(t, 0.0, closed.BalanceDue, 1e-9)
}

func TestCloseDispatchPaymentNeedsMethod(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{
		SaleType: TypeDispatch,
		Items:    []ItemInput{{BottleSizeID: 1, Quantity: 10}},
	})
	require.NoError(t, err)

	_, err = svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{AmountPaid: 1800})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, store.payments[sale.ID])

	blank := "   "
	_, err = svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{AmountPaid: 1800, PaymentMethod: &blank})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, store.payments[sale.ID])
}

func TestCloseDispatchWithImmediatePayment(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{
		SaleType: TypeDispatch,
		Items:    []ItemInput{{BottleSizeID: 1, Quantity: 10}},
	})
	require.NoError(t, err)

	method := "Cash"
	closed, err := svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{
		Returns:       []ReturnInput{{BottleSizeID: 1, QuantityReturned: 4}},
		AmountPaid:    1800,
		PaymentMethod: &method,
	})
	require.NoError(t, err)
	require.InDelta(t, 1800.0, closed.TotalAmount, 1e-9)
	require.InDelta(t, 1800.0, closed.PaidAmount, 1e-9)
	require.InDelta(t, 0.0, closed.BalanceDue, 1e-9)
	require.Len(t, closed.Payments, 1)
}

func TestCloseDispatchRejectsExcessReturn(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{
		SaleType: TypeDispatch,
		Items:    []ItemInput{{BottleSizeID: 1, Quantity: 3}},
	})
	require.NoError(t, err)

	_, err = svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{
		Returns: []ReturnInput{{BottleSizeID: 1, QuantityReturned: 4}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 3, store.items[sale.ID][0].Quantity)
	require.Equal(t, 17, store.stock.balances[1].QuantityAvailable)
}

func TestCloseDispatchRejectsNonDispatch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 1}}})
	require.NoError(t, err)

	_, err = svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCloseDispatchRejectsOverpayment(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestEngine(t)

	sale, err := svc.Create(ctx, CreateInput{
		SaleType: TypeDispatch,
		Items:    []ItemInput{{BottleSizeID: 1, Quantity: 2}},
	})
	require.NoError(t, err)

	method := "Cash"
	_, err = svc.CloseDispatch(ctx, sale.ID, CloseDispatchInput{AmountPaid: 10_000, PaymentMethod: &method})
	require.ErrorIs(t, err, shared.ErrOverpayment)
	require.Empty(t, store.payments[sale.ID])
}

func TestNextReceiptNumber(t *testing.T) {
	require.Equal(t, "20250310001", nextReceiptNumber("20250310", ""))
	require.Equal(t, "20250310008", nextReceiptNumber("20250310", "20250310007"))
	require.Equal(t, "20250310100", nextReceiptNumber("20250310", "20250310099"))
	require.Equal(t, "202503101000", nextReceiptNumber("20250310", "20250310999"))
	require.Equal(t, "20250311001", nextReceiptNumber("20250311", ""))
}

func TestWriteCSVHeadersOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEngine(t)

	_, err := svc.Create(ctx, CreateInput{Items: []ItemInput{{BottleSizeID: 1, Quantity: 2}}})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, svc.WriteCSV(ctx, &sb, Filter{}, false))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Receipt")
	require.Contains(t, lines[1], "20250310001")
	require.Contains(t, lines[1], "600.00")
}
