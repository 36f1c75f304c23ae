package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquatrack/aquatrack/internal/platform/db"
	"github.com/aquatrack/aquatrack/internal/shared"
)

// TxStore groups the payment mutations that must update the sale header in
// the same transaction.
type TxStore interface {
	GetSaleForUpdate(ctx context.Context, saleID int64) (SaleTotals, error)
	UpdateSaleAmounts(ctx context.Context, saleID int64, paid, balance float64) error
	InsertPayment(ctx context.Context, payment *Payment) error
	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	UpdatePayment(ctx context.Context, payment Payment) error
	DeletePayment(ctx context.Context, id int64) error
}

// Store is the persistence port for the payment ledger.
type Store interface {
	WithTx(ctx context.Context, fn func(tx TxStore) error) error
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, filter Filter) ([]Payment, error)
	NotificationInfo(ctx context.Context, saleID int64) (Notification, error)
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

func (t *txRepo) GetSaleForUpdate(ctx context.Context, saleID int64) (SaleTotals, error) {
	var s SaleTotals
	err := t.q.QueryRow(ctx,
		`SELECT id, sale_type, total_amount, paid_amount, balance_due, is_deleted
		 FROM retail_sales WHERE id = $1 FOR UPDATE`, saleID,
	).Scan(&s.ID, &s.SaleType, &s.TotalAmount, &s.PaidAmount, &s.BalanceDue, &s.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleTotals{}, fmt.Errorf("payments: sale %d: %w", saleID, shared.ErrNotFound)
		}
		return SaleTotals{}, err
	}
	return s, nil
}

func (t *txRepo) UpdateSaleAmounts(ctx context.Context, saleID int64, paid, balance float64) error {
	_, err := t.q.Exec(ctx,
		`UPDATE retail_sales SET paid_amount = $2, balance_due = $3 WHERE id = $1`,
		saleID, paid, balance)
	return err
}

func (t *txRepo) InsertPayment(ctx context.Context, payment *Payment) error {
	return t.q.QueryRow(ctx,
		`INSERT INTO customer_payments (retail_sale_id, amount, payment_method, date, added_by)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		payment.RetailSaleID, payment.Amount, payment.PaymentMethod, payment.Date, payment.AddedBy,
	).Scan(&payment.ID)
}

func (t *txRepo) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	err := t.q.QueryRow(ctx,
		`SELECT id, retail_sale_id, amount, payment_method, date, added_by
		 FROM customer_payments WHERE id = $1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.RetailSaleID, &p.Amount, &p.PaymentMethod, &p.Date, &p.AddedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fmt.Errorf("payments: payment %d: %w", id, shared.ErrNotFound)
		}
		return Payment{}, err
	}
	return p, nil
}

func (t *txRepo) UpdatePayment(ctx context.Context, payment Payment) error {
	_, err := t.q.Exec(ctx,
		`UPDATE customer_payments SET amount = $2, payment_method = $3, date = $4 WHERE id = $1`,
		payment.ID, payment.Amount, payment.PaymentMethod, payment.Date)
	return err
}

func (t *txRepo) DeletePayment(ctx context.Context, id int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM customer_payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payments: payment %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// GetPayment fetches a payment by id.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx,
		`SELECT id, retail_sale_id, amount, payment_method, date, added_by
		 FROM customer_payments WHERE id = $1`, id,
	).Scan(&p.ID, &p.RetailSaleID, &p.Amount, &p.PaymentMethod, &p.Date, &p.AddedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fmt.Errorf("payments: payment %d: %w", id, shared.ErrNotFound)
		}
		return Payment{}, err
	}
	return p, nil
}

// ListPayments lists payments newest first.
func (r *Repository) ListPayments(ctx context.Context, filter Filter) ([]Payment, error) {
	where := ""
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clause = clause + "$" + strconv.Itoa(len(args))
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}
	if filter.SaleID != nil {
		add("retail_sale_id = ", *filter.SaleID)
	}
	if !filter.Start.IsZero() {
		add("date >= ", filter.Start)
	}
	if !filter.End.IsZero() {
		add("date < ", filter.End)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, retail_sale_id, amount, payment_method, date, added_by
		 FROM customer_payments`+where+` ORDER BY date DESC, id DESC`, args...)
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

// NotificationInfo assembles the customer contact data for a payment email.
// It fails with shared.ErrNotFound when the sale has no customer email.
func (r *Repository) NotificationInfo(ctx context.Context, saleID int64) (Notification, error) {
	var (
		n     Notification
		email *string
		name  *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT s.id, s.receipt_number, s.balance_due, c.name, c.email
		 FROM retail_sales s
		 JOIN customers c ON c.id = s.customer_id
		 WHERE s.id = $1`, saleID,
	).Scan(&n.SaleID, &n.ReceiptNumber, &n.BalanceDue, &name, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, fmt.Errorf("payments: customer for sale %d: %w", saleID, shared.ErrNotFound)
		}
		return Notification{}, err
	}
	if email == nil || *email == "" {
		return Notification{}, fmt.Errorf("payments: customer email for sale %d: %w", saleID, shared.ErrNotFound)
	}
	n.CustomerEmail = *email
	if name != nil {
		n.CustomerName = *name
	}
	return n, nil
}
