package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquatrack/aquatrack/internal/shared"
)

// RepositoryPort is the persistence port for customers.
type RepositoryPort interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id int64) (Customer, error)
	Update(ctx context.Context, customer Customer) error
	Delete(ctx context.Context, id int64) error
	ListWithBalances(ctx context.Context) ([]View, error)
}

// Repository is the pgx-backed RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, customer *Customer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO customers (name, phone, email, notes, created_at)
		 VALUES ($1, $2, $3, $4, now()) RETURNING id, created_at`,
		customer.Name, customer.Phone, customer.Email, customer.Notes,
	).Scan(&customer.ID, &customer.CreatedAt)
}

func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, phone, email, notes, created_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Notes, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, fmt.Errorf("customers: customer %d: %w", id, shared.ErrNotFound)
		}
		return Customer{}, err
	}
	return c, nil
}

func (r *Repository) Update(ctx context.Context, customer Customer) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET name = $2, phone = $3, email = $4, notes = $5 WHERE id = $1`,
		customer.ID, customer.Name, customer.Phone, customer.Email, customer.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customers: customer %d: %w", customer.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customers: customer %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListWithBalances lists customers with the sum of balance_due over their
// live sales.
func (r *Repository) ListWithBalances(ctx context.Context) ([]View, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.phone, c.email, c.notes, c.created_at,
		       COALESCE(b.balance_due, 0)
		FROM customers c
		LEFT JOIN (
			SELECT customer_id, SUM(balance_due) AS balance_due
			FROM retail_sales
			WHERE NOT is_deleted AND customer_id IS NOT NULL
			GROUP BY customer_id
		) b ON b.customer_id = c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.Name, &v.Phone, &v.Email, &v.Notes, &v.CreatedAt, &v.TotalBalanceDue); err != nil {
			return nil, err
		}
		v.HasBalance = v.TotalBalanceDue > 0
		views = append(views, v)
	}
	return views, rows.Err()
}
