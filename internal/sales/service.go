package sales

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aquatrack/aquatrack/internal/catalog"
	"github.com/aquatrack/aquatrack/internal/shared"
	"github.com/aquatrack/aquatrack/internal/stock"
)

const (
	maxReceiptRetries = 5
	receiptSeqWidth   = 3
)

// CatalogPort is the slice of the catalog the engine needs for price
// defaulting and COGS snapshots.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.View, error)
}

// CustomerPort resolves customers referenced by credit and dispatch sales.
type CustomerPort interface {
	Lookup(ctx context.Context, id int64) (string, error)
}

// Service is the sale engine. Every sale mutation debits or credits the stock
// ledger in the same transaction as the sale rows, so a failed stock check
// leaves no partial sale behind.
type Service struct {
	store     Store
	ledger    *stock.Ledger
	catalog   CatalogPort
	customers CustomerPort
	clock     *shared.Clock
}

// NewService builds Service.
func NewService(store Store, ledger *stock.Ledger, catalogPort CatalogPort, customers CustomerPort, clock *shared.Clock) *Service {
	return &Service{store: store, ledger: ledger, catalog: catalogPort, customers: customers, clock: clock}
}

// ItemInput is one requested sale line. A nil UnitPrice defaults to the
// size's current selling price.
type ItemInput struct {
	BottleSizeID int64
	Quantity     int
	UnitPrice    *float64
}

// CreateInput is the payload for opening a sale.
type CreateInput struct {
	SaleType     string
	CustomerID   *int64
	CustomerName *string
	Notes        *string
	Items        []ItemInput
}

// normalized is an item with price and COGS resolved.
type normalized struct {
	bottleSizeID int64
	quantity     int
	unitPrice    float64
	totalPrice   float64
	cogsUnit     float64
	cogsTotal    float64
}

func (s *Service) normalizeItems(ctx context.Context, items []ItemInput) ([]normalized, float64, error) {
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("sales: items cannot be empty: %w", shared.ErrValidation)
	}
	var (
		out   []normalized
		total float64
	)
	for i, it := range items {
		if it.BottleSizeID <= 0 {
			return nil, 0, fmt.Errorf("sales: item #%d: bottle_size_id is required: %w", i+1, shared.ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, 0, fmt.Errorf("sales: item #%d: quantity must be > 0: %w", i+1, shared.ErrValidation)
		}
		size, err := s.catalog.Get(ctx, it.BottleSizeID)
		if err != nil {
			return nil, 0, fmt.Errorf("sales: item #%d: %w", i+1, err)
		}
		price := size.SellingPrice
		if it.UnitPrice != nil {
			if *it.UnitPrice < 0 {
				return nil, 0, fmt.Errorf("sales: item #%d: unit_price must be non-negative: %w", i+1, shared.ErrValidation)
			}
			price = *it.UnitPrice
		}
		n := normalized{
			bottleSizeID: it.BottleSizeID,
			quantity:     it.Quantity,
			unitPrice:    price,
			totalPrice:   price * float64(it.Quantity),
			cogsUnit:     size.CostPriceCarton,
			cogsTotal:    size.CostPriceCarton * float64(it.Quantity),
		}
		total += n.totalPrice
		out = append(out, n)
	}
	return out, total, nil
}

// nextReceiptNumber derives the next sequence for today's prefix from the
// highest receipt already issued under it.
func nextReceiptNumber(prefix, latest string) string {
	lastSeq := 0
	if latest != "" && strings.HasPrefix(latest, prefix) {
		if n, err := strconv.Atoi(latest[len(prefix):]); err == nil {
			lastSeq = n
		}
	}
	return prefix + fmt.Sprintf("%0*d", receiptSeqWidth, lastSeq+1)
}

// Create opens an unpaid sale, debits stock for each line and allocates a
// daily receipt number. Receipt collisions with concurrent sales are retried.
func (s *Service) Create(ctx context.Context, input CreateInput) (Sale, error) {
	saleType := strings.ToLower(strings.TrimSpace(input.SaleType))
	if saleType == "" {
		saleType = TypeNormal
	}
	if !ValidType(saleType) {
		return Sale{}, fmt.Errorf("sales: sale_type must be one of normal, credit, dispatch: %w", shared.ErrValidation)
	}

	customerName := input.CustomerName
	if input.CustomerID != nil {
		name, err := s.customers.Lookup(ctx, *input.CustomerID)
		if err != nil {
			return Sale{}, err
		}
		if customerName == nil || *customerName == "" {
			customerName = &name
		}
	}

	norm, total, err := s.normalizeItems(ctx, input.Items)
	if err != nil {
		return Sale{}, err
	}

	sale := Sale{
		SaleType:     saleType,
		Date:         s.clock.NowUTC(),
		CustomerID:   input.CustomerID,
		CustomerName: customerName,
		Notes:        input.Notes,
		TotalAmount:  total,
		PaidAmount:   0,
		BalanceDue:   total,
	}
	if actor := shared.ActorFromContext(ctx); actor != nil {
		sale.AddedBy = &actor.ID
	}

	for attempt := 0; attempt < maxReceiptRetries; attempt++ {
		sale.ID = 0
		err = s.store.WithTx(ctx, func(tx TxStore) error {
			prefix := s.clock.ReceiptPrefix()
			latest, err := tx.LatestReceiptNumber(ctx, prefix)
			if err != nil {
				return err
			}
			sale.ReceiptNumber = nextReceiptNumber(prefix, latest)
			if err := tx.InsertSale(ctx, &sale); err != nil {
				return err
			}
			for _, n := range norm {
				if _, err := s.ledger.Adjust(ctx, tx.Stock(), n.bottleSizeID, -n.quantity); err != nil {
					return err
				}
				item := SaleItem{
					SaleID:        sale.ID,
					BottleSizeID:  n.bottleSizeID,
					Quantity:      n.quantity,
					UnitPrice:     n.unitPrice,
					TotalPrice:    n.totalPrice,
					CogsUnitPrice: n.cogsUnit,
					CogsTotal:     n.cogsTotal,
				}
				if err := tx.InsertItem(ctx, &item); err != nil {
					return err
				}
			}
			return nil
		})
		if !errors.Is(err, errReceiptTaken) {
			break
		}
	}
	if errors.Is(err, errReceiptTaken) {
		return Sale{}, fmt.Errorf("sales: %w", shared.ErrReceiptAllocation)
	}
	if err != nil {
		return Sale{}, err
	}
	return s.store.GetSale(ctx, sale.ID, false)
}

// UpdateInput carries partial changes to a sale header, plus an optional full
// item replacement.
type UpdateInput struct {
	Date         *time.Time
	CustomerID   *int64
	CustomerName *string
	SaleType     *string
	Notes        *string
	Items        []ItemInput
	ReplaceItems bool
}

// Update edits a sale. When items are replaced, stock moves only by the net
// per-size difference between the old and new lines, and the total and
// balance are recomputed with the paid amount left intact.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Sale, error) {
	if input.SaleType != nil {
		st := strings.ToLower(strings.TrimSpace(*input.SaleType))
		if st != "" && !ValidType(st) {
			return Sale{}, fmt.Errorf("sales: sale_type must be one of normal, credit, dispatch: %w", shared.ErrValidation)
		}
		input.SaleType = &st
	}
	if input.CustomerID != nil {
		if _, err := s.customers.Lookup(ctx, *input.CustomerID); err != nil {
			return Sale{}, err
		}
	}

	var (
		norm  []normalized
		total float64
		err   error
	)
	if input.ReplaceItems {
		norm, total, err = s.normalizeItems(ctx, input.Items)
		if err != nil {
			return Sale{}, err
		}
	}

	err = s.store.WithTx(ctx, func(tx TxStore) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.IsDeleted {
			return fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
		}

		if input.Date != nil {
			start, _ := s.clock.DayBoundsUTC(*input.Date)
			sale.Date = start
		}
		if input.CustomerName != nil {
			name := strings.TrimSpace(*input.CustomerName)
			if name == "" {
				sale.CustomerName = nil
			} else {
				sale.CustomerName = &name
			}
		}
		if input.CustomerID != nil {
			sale.CustomerID = input.CustomerID
		}
		if input.SaleType != nil && *input.SaleType != "" {
			sale.SaleType = *input.SaleType
		}
		if input.Notes != nil {
			notes := strings.TrimSpace(*input.Notes)
			if notes == "" {
				sale.Notes = nil
			} else {
				sale.Notes = &notes
			}
		}

		if input.ReplaceItems {
			oldItems, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			deltas := make(map[int64]int)
			for _, it := range oldItems {
				deltas[it.BottleSizeID] -= it.Quantity
			}
			for _, n := range norm {
				deltas[n.bottleSizeID] += n.quantity
			}
			for sizeID, delta := range deltas {
				if delta == 0 {
					continue
				}
				if _, err := s.ledger.Adjust(ctx, tx.Stock(), sizeID, -delta); err != nil {
					return err
				}
			}
			if err := tx.DeleteItems(ctx, id); err != nil {
				return err
			}
			for _, n := range norm {
				item := SaleItem{
					SaleID:        id,
					BottleSizeID:  n.bottleSizeID,
					Quantity:      n.quantity,
					UnitPrice:     n.unitPrice,
					TotalPrice:    n.totalPrice,
					CogsUnitPrice: n.cogsUnit,
					CogsTotal:     n.cogsTotal,
				}
				if err := tx.InsertItem(ctx, &item); err != nil {
					return err
				}
			}
			sale.TotalAmount = total
			sale.BalanceDue = balanceDue(sale.TotalAmount, sale.PaidAmount)
		}
		return tx.UpdateSaleHeader(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	return s.store.GetSale(ctx, id, false)
}

// Delete soft-deletes a sale and returns its cartons to stock.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx TxStore) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.IsDeleted {
			return fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), it.BottleSizeID, it.Quantity); err != nil {
				return err
			}
		}
		return tx.SetSaleDeleted(ctx, id, true)
	})
}

// Restore reverses a soft delete, consuming stock again. It fails when the
// cartons have since been used elsewhere.
func (s *Service) Restore(ctx context.Context, id int64) (Sale, error) {
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sale.IsDeleted {
			return nil
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), it.BottleSizeID, -it.Quantity); err != nil {
				return err
			}
		}
		return tx.SetSaleDeleted(ctx, id, false)
	})
	if err != nil {
		return Sale{}, err
	}
	return s.store.GetSale(ctx, id, false)
}

// ReturnInput is one returned line of a dispatch.
type ReturnInput struct {
	BottleSizeID     int64
	QuantityReturned int
}

// CloseDispatchInput settles a dispatch sale. PaymentMethod is required
// whenever AmountPaid is positive.
type CloseDispatchInput struct {
	Returns       []ReturnInput
	AmountPaid    float64
	PaymentMethod *string
}

// CloseDispatch reconciles a dispatch sale against what came back: returned
// cartons are credited to stock, each line's quantity becomes sent minus
// returned, totals are recomputed and an optional payment is applied, all in
// one transaction.
func (s *Service) CloseDispatch(ctx context.Context, id int64, input CloseDispatchInput) (Sale, error) {
	if input.AmountPaid < 0 {
		return Sale{}, fmt.Errorf("sales: amount_paid must be non-negative: %w", shared.ErrValidation)
	}
	var method string
	if input.AmountPaid > 0 {
		if input.PaymentMethod != nil {
			method = strings.TrimSpace(*input.PaymentMethod)
		}
		if method == "" {
			return Sale{}, fmt.Errorf("sales: payment_method is required with amount_paid: %w", shared.ErrValidation)
		}
	}
	returns := make(map[int64]int, len(input.Returns))
	for _, ret := range input.Returns {
		if ret.BottleSizeID <= 0 || ret.QuantityReturned < 0 {
			return Sale{}, fmt.Errorf("sales: each return needs bottle_size_id and non-negative quantity_returned: %w", shared.ErrValidation)
		}
		returns[ret.BottleSizeID] = ret.QuantityReturned
	}

	err := s.store.WithTx(ctx, func(tx TxStore) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.IsDeleted {
			return fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
		}
		if sale.SaleType != TypeDispatch {
			return fmt.Errorf("sales: sale %d is not a dispatch: %w", id, shared.ErrValidation)
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}

		var newTotal float64
		for _, it := range items {
			returned := returns[it.BottleSizeID]
			if returned > it.Quantity {
				return fmt.Errorf("sales: returned %d exceeds %d sent for size %d: %w",
					returned, it.Quantity, it.BottleSizeID, shared.ErrValidation)
			}
			if returned > 0 {
				if _, err := s.ledger.Adjust(ctx, tx.Stock(), it.BottleSizeID, returned); err != nil {
					return err
				}
			}
			it.Quantity -= returned
			it.TotalPrice = it.UnitPrice * float64(it.Quantity)
			it.CogsTotal = it.CogsUnitPrice * float64(it.Quantity)
			if err := tx.UpdateItem(ctx, it); err != nil {
				return err
			}
			newTotal += it.TotalPrice
		}

		sale.TotalAmount = newTotal
		sale.BalanceDue = balanceDue(sale.TotalAmount, sale.PaidAmount)

		if input.AmountPaid > 0 {
			remaining := sale.BalanceDue
			if input.AmountPaid > remaining+shared.AmountTolerance {
				return fmt.Errorf("sales: amount_paid exceeds remaining balance %.2f: %w", remaining, shared.ErrOverpayment)
			}
			payment := Payment{
				RetailSaleID:  id,
				Amount:        input.AmountPaid,
				PaymentMethod: &method,
				Date:          s.clock.NowUTC(),
				AddedBy:       sale.AddedBy,
			}
			if actor := shared.ActorFromContext(ctx); actor != nil {
				payment.AddedBy = &actor.ID
			}
			if err := tx.InsertPayment(ctx, &payment); err != nil {
				return err
			}
			sale.PaidAmount += input.AmountPaid
			sale.BalanceDue = balanceDue(sale.TotalAmount, sale.PaidAmount)
		}
		return tx.UpdateSaleHeader(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	return s.store.GetSale(ctx, id, false)
}

// Get fetches a sale with items and payments.
func (s *Service) Get(ctx context.Context, id int64, includeDeleted bool) (Sale, error) {
	return s.store.GetSale(ctx, id, includeDeleted)
}

// GetByReceipt fetches a sale by receipt number.
func (s *Service) GetByReceipt(ctx context.Context, receipt string, includeDeleted bool) (Sale, error) {
	return s.store.GetSaleByReceipt(ctx, receipt, includeDeleted)
}

// List returns a filtered page of sale headers.
func (s *Service) List(ctx context.Context, filter Filter, page, perPage int) ([]Sale, shared.Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	if perPage > 100 {
		perPage = 100
	}
	sales, total, err := s.store.ListSales(ctx, filter, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return sales, shared.NewPagination(page, perPage, total), nil
}

// DayWindow resolves the UTC bounds of a business day offset days back from
// today; offset 0 is today.
func (s *Service) DayWindow(offsetDays int) (time.Time, time.Time, string) {
	day := s.clock.Today().AddDate(0, 0, -offsetDays)
	start, end := s.clock.DayBoundsUTC(day)
	return start, end, day.Format("2006-01-02")
}

// RecentWindow resolves the UTC bounds covering the last n business days,
// today inclusive.
func (s *Service) RecentWindow(days int) (time.Time, time.Time, string, string) {
	end := s.clock.Today()
	start := end.AddDate(0, 0, -(days - 1))
	startUTC, _ := s.clock.DayBoundsUTC(start)
	_, endUTC := s.clock.DayBoundsUTC(end)
	return startUTC, endUTC, start.Format("2006-01-02"), end.Format("2006-01-02")
}

// ListWithItems returns every matching sale with its items attached.
func (s *Service) ListWithItems(ctx context.Context, filter Filter) ([]Sale, error) {
	return s.store.ListSalesWithItems(ctx, filter)
}

// WriteCSV streams matching sales as CSV, either one row per sale or one row
// per item line.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, filter Filter, includeItems bool) error {
	filter.OrderAsc = true
	sales, err := s.store.ListSalesWithItems(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if includeItems {
		if err := cw.Write([]string{"Receipt", "Date", "Customer", "Sale Type", "Bottle Size", "Quantity", "Unit Price", "Total Price"}); err != nil {
			return err
		}
		for _, sale := range sales {
			for _, it := range sale.Items {
				rec := []string{
					sale.ReceiptNumber,
					s.clock.LocalDay(sale.Date),
					strValue(sale.CustomerName),
					sale.SaleType,
					it.BottleSizeLabel,
					strconv.Itoa(it.Quantity),
					formatAmount(it.UnitPrice),
					formatAmount(it.TotalPrice),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	} else {
		if err := cw.Write([]string{"Receipt", "Date", "Customer", "Sale Type", "Total Amount", "Paid Amount", "Balance Due"}); err != nil {
			return err
		}
		for _, sale := range sales {
			rec := []string{
				sale.ReceiptNumber,
				s.clock.LocalDay(sale.Date),
				strValue(sale.CustomerName),
				sale.SaleType,
				formatAmount(sale.TotalAmount),
				formatAmount(sale.PaidAmount),
				formatAmount(sale.BalanceDue),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func balanceDue(total, paid float64) float64 {
	if due := total - paid; due > 0 {
		return due
	}
	return 0
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
