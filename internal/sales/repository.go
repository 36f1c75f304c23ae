package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquatrack/aquatrack/internal/platform/db"
	"github.com/aquatrack/aquatrack/internal/shared"
	"github.com/aquatrack/aquatrack/internal/stock"
)

// errReceiptTaken signals a lost race on the receipt_number unique index; the
// engine retries allocation a bounded number of times.
var errReceiptTaken = errors.New("sales: receipt number taken")

// TxStore groups the sale mutations that must share a transaction with their
// stock effects.
type TxStore interface {
	LatestReceiptNumber(ctx context.Context, prefix string) (string, error)
	InsertSale(ctx context.Context, sale *Sale) error
	UpdateSaleHeader(ctx context.Context, sale Sale) error
	SetSaleDeleted(ctx context.Context, id int64, deleted bool) error
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	ListItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	InsertItem(ctx context.Context, item *SaleItem) error
	UpdateItem(ctx context.Context, item SaleItem) error
	DeleteItems(ctx context.Context, saleID int64) error
	InsertPayment(ctx context.Context, payment *Payment) error
	Stock() stock.TxStore
}

// Store is the persistence port for the sale engine.
type Store interface {
	WithTx(ctx context.Context, fn func(tx TxStore) error) error
	GetSale(ctx context.Context, id int64, includeDeleted bool) (Sale, error)
	GetSaleByReceipt(ctx context.Context, receipt string, includeDeleted bool) (Sale, error)
	ListSales(ctx context.Context, filter Filter, page, perPage int) ([]Sale, int, error)
	ListSalesWithItems(ctx context.Context, filter Filter) ([]Sale, error)
}

// Repository is the pgx-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepo{q: tx})
	})
}

type txRepo struct {
	q pgx.Tx
}

func (t *txRepo) Stock() stock.TxStore {
	return stock.NewTxStore(t.q)
}

func (t *txRepo) LatestReceiptNumber(ctx context.Context, prefix string) (string, error) {
	var receipt string
	err := t.q.QueryRow(ctx,
		`SELECT receipt_number FROM retail_sales
		 WHERE receipt_number LIKE $1 || '%'
		 ORDER BY receipt_number DESC LIMIT 1`, prefix,
	).Scan(&receipt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return receipt, err
}

func (t *txRepo) InsertSale(ctx context.Context, sale *Sale) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO retail_sales
		   (sale_type, receipt_number, date, customer_id, customer_name,
		    total_amount, paid_amount, balance_due, payment_method, notes, added_by, is_deleted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)
		 RETURNING id`,
		sale.SaleType, sale.ReceiptNumber, sale.Date, sale.CustomerID, sale.CustomerName,
		sale.TotalAmount, sale.PaidAmount, sale.BalanceDue, sale.PaymentMethod, sale.Notes, sale.AddedBy,
	).Scan(&sale.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errReceiptTaken
		}
		return err
	}
	return nil
}

func (t *txRepo) UpdateSaleHeader(ctx context.Context, sale Sale) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE retail_sales SET
		   sale_type = $2, date = $3, customer_id = $4, customer_name = $5,
		   total_amount = $6, paid_amount = $7, balance_due = $8,
		   payment_method = $9, notes = $10
		 WHERE id = $1`,
		sale.ID, sale.SaleType, sale.Date, sale.CustomerID, sale.CustomerName,
		sale.TotalAmount, sale.PaidAmount, sale.BalanceDue, sale.PaymentMethod, sale.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales: sale %d: %w", sale.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) SetSaleDeleted(ctx context.Context, id int64, deleted bool) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE retail_sales SET is_deleted = $2 WHERE id = $1`, id, deleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	var s Sale
	err := t.q.QueryRow(ctx,
		`SELECT id, sale_type, receipt_number, date, customer_id, customer_name,
		        total_amount, paid_amount, balance_due, payment_method, notes, added_by, is_deleted
		 FROM retail_sales WHERE id = $1 FOR UPDATE`, id,
	).Scan(&s.ID, &s.SaleType, &s.ReceiptNumber, &s.Date, &s.CustomerID, &s.CustomerName,
		&s.TotalAmount, &s.PaidAmount, &s.BalanceDue, &s.PaymentMethod, &s.Notes, &s.AddedBy, &s.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
		}
		return Sale{}, err
	}
	return s, nil
}

func (t *txRepo) ListItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	rows, err := t.q.Query(ctx,
		`SELECT id, sale_id, bottle_size_id, quantity, unit_price, total_price, cogs_unit_price, cogs_total
		 FROM retail_sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows, false)
}

func (t *txRepo) InsertItem(ctx context.Context, item *SaleItem) error {
	return t.q.QueryRow(ctx,
		`INSERT INTO retail_sale_items
		   (sale_id, bottle_size_id, quantity, unit_price, total_price, cogs_unit_price, cogs_total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		item.SaleID, item.BottleSizeID, item.Quantity, item.UnitPrice, item.TotalPrice,
		item.CogsUnitPrice, item.CogsTotal,
	).Scan(&item.ID)
}

func (t *txRepo) UpdateItem(ctx context.Context, item SaleItem) error {
	_, err := t.q.Exec(ctx,
		`UPDATE retail_sale_items SET quantity = $2, total_price = $3, cogs_total = $4 WHERE id = $1`,
		item.ID, item.Quantity, item.TotalPrice, item.CogsTotal)
	return err
}

func (t *txRepo) DeleteItems(ctx context.Context, saleID int64) error {
	_, err := t.q.Exec(ctx, `DELETE FROM retail_sale_items WHERE sale_id = $1`, saleID)
	return err
}

func (t *txRepo) InsertPayment(ctx context.Context, payment *Payment) error {
	return t.q.QueryRow(ctx,
		`INSERT INTO customer_payments (retail_sale_id, amount, payment_method, date, added_by)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		payment.RetailSaleID, payment.Amount, payment.PaymentMethod, payment.Date, payment.AddedBy,
	).Scan(&payment.ID)
}

const saleSelect = `
	SELECT id, sale_type, receipt_number, date, customer_id, customer_name,
	       total_amount, paid_amount, balance_due, payment_method, notes, added_by, is_deleted
	FROM retail_sales`

// GetSale fetches a sale with its items and payments.
func (r *Repository) GetSale(ctx context.Context, id int64, includeDeleted bool) (Sale, error) {
	return r.getSale(ctx, `id = $1`, id, includeDeleted)
}

// GetSaleByReceipt fetches a sale by its receipt number.
func (r *Repository) GetSaleByReceipt(ctx context.Context, receipt string, includeDeleted bool) (Sale, error) {
	return r.getSale(ctx, `receipt_number = $1`, receipt, includeDeleted)
}

func (r *Repository) getSale(ctx context.Context, cond string, arg any, includeDeleted bool) (Sale, error) {
	query := saleSelect + ` WHERE ` + cond
	if !includeDeleted {
		query += ` AND NOT is_deleted`
	}
	var s Sale
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.ID, &s.SaleType, &s.ReceiptNumber, &s.Date, &s.CustomerID, &s.CustomerName,
		&s.TotalAmount, &s.PaidAmount, &s.BalanceDue, &s.PaymentMethod, &s.Notes, &s.AddedBy, &s.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("sales: sale: %w", shared.ErrNotFound)
		}
		return Sale{}, err
	}
	if s.Items, err = r.itemsForSale(ctx, s.ID); err != nil {
		return Sale{}, err
	}
	if s.Payments, err = r.paymentsForSale(ctx, s.ID); err != nil {
		return Sale{}, err
	}
	return s, nil
}

func (r *Repository) itemsForSale(ctx context.Context, saleID int64) ([]SaleItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.sale_id, i.bottle_size_id, bs.label, i.quantity, i.unit_price, i.total_price,
		        i.cogs_unit_price, i.cogs_total
		 FROM retail_sale_items i
		 LEFT JOIN bottle_sizes bs ON bs.id = i.bottle_size_id
		 WHERE i.sale_id = $1 ORDER BY i.id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows, true)
}

func (r *Repository) paymentsForSale(ctx context.Context, saleID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, retail_sale_id, amount, payment_method, date, added_by
		 FROM customer_payments WHERE retail_sale_id = $1 ORDER BY date DESC, id DESC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.RetailSaleID, &p.Amount, &p.PaymentMethod, &p.Date, &p.AddedBy); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanItems(rows pgx.Rows, withLabel bool) ([]SaleItem, error) {
	var items []SaleItem
	for rows.Next() {
		var (
			it    SaleItem
			label *string
		)
		dest := []any{&it.ID, &it.SaleID, &it.BottleSizeID}
		if withLabel {
			dest = append(dest, &label)
		}
		dest = append(dest, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.CogsUnitPrice, &it.CogsTotal)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if label != nil {
			it.BottleSizeLabel = *label
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, clause+"$"+strconv.Itoa(len(w.args)))
}

func (w *whereBuilder) addRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	out := " WHERE " + w.clauses[0]
	for _, c := range w.clauses[1:] {
		out += " AND " + c
	}
	return out
}

func buildFilter(filter Filter) *whereBuilder {
	w := &whereBuilder{}
	if !filter.IncludeDeleted {
		w.addRaw("NOT is_deleted")
	}
	if filter.Query != "" {
		w.args = append(w.args, "%"+filter.Query+"%")
		p := "$" + strconv.Itoa(len(w.args))
		w.addRaw("(receipt_number ILIKE " + p + " OR customer_name ILIKE " + p + ")")
	}
	if filter.Receipt != "" {
		w.add("receipt_number ILIKE ", "%"+filter.Receipt+"%")
	}
	if filter.Customer != "" {
		w.add("customer_name ILIKE ", "%"+filter.Customer+"%")
	}
	if ValidType(filter.SaleType) {
		w.add("sale_type = ", filter.SaleType)
	}
	if !filter.Start.IsZero() {
		w.add("date >= ", filter.Start)
	}
	if !filter.End.IsZero() {
		w.add("date < ", filter.End)
	}
	if filter.MinTotal != nil {
		w.add("total_amount >= ", *filter.MinTotal)
	}
	if filter.MaxTotal != nil {
		w.add("total_amount <= ", *filter.MaxTotal)
	}
	if filter.AddedBy != nil {
		w.add("added_by = ", *filter.AddedBy)
	}
	if filter.BottleSizeID != nil {
		w.args = append(w.args, *filter.BottleSizeID)
		p := "$" + strconv.Itoa(len(w.args))
		w.addRaw("(SELECT COUNT(*) FROM retail_sale_items i WHERE i.sale_id = retail_sales.id AND i.bottle_size_id = " + p + ") > 0")
	}
	switch filter.PaidState {
	case PaidStatePaid:
		w.addRaw("balance_due <= 1e-9")
	case PaidStateUnpaid:
		w.addRaw("paid_amount <= 1e-9 AND total_amount > 0")
	case PaidStatePartial:
		w.addRaw("paid_amount > 1e-9 AND balance_due > 1e-9")
	}
	return w
}

// ListSales returns a filtered page of sale headers plus the total count.
func (r *Repository) ListSales(ctx context.Context, filter Filter, page, perPage int) ([]Sale, int, error) {
	w := buildFilter(filter)
	where := w.sql()

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM retail_sales`+where, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := ` ORDER BY date DESC, id DESC`
	if filter.OrderAsc {
		order = ` ORDER BY date ASC, id DESC`
	}
	args := append(w.args, perPage, (page-1)*perPage)
	query := saleSelect + where + order +
		" LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.SaleType, &s.ReceiptNumber, &s.Date, &s.CustomerID, &s.CustomerName,
			&s.TotalAmount, &s.PaidAmount, &s.BalanceDue, &s.PaymentMethod, &s.Notes, &s.AddedBy, &s.IsDeleted); err != nil {
			return nil, 0, err
		}
		sales = append(sales, s)
	}
	return sales, total, rows.Err()
}

// ListSalesWithItems returns every sale matching the filter with items
// attached, for exports and day views.
func (r *Repository) ListSalesWithItems(ctx context.Context, filter Filter) ([]Sale, error) {
	w := buildFilter(filter)
	order := ` ORDER BY date DESC, id DESC`
	if filter.OrderAsc {
		order = ` ORDER BY date ASC, id ASC`
	}
	rows, err := r.pool.Query(ctx, saleSelect+w.sql()+order, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.SaleType, &s.ReceiptNumber, &s.Date, &s.CustomerID, &s.CustomerName,
			&s.TotalAmount, &s.PaidAmount, &s.BalanceDue, &s.PaymentMethod, &s.Notes, &s.AddedBy, &s.IsDeleted); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sales {
		if sales[i].Items, err = r.itemsForSale(ctx, sales[i].ID); err != nil {
			return nil, err
		}
	}
	return sales, nil
}
